// Package geo holds the game geometry: win polygons, point-in-polygon
// checks with edge tolerance, distances, scoring and camera positions.
package geo

import (
	"math"
	"math/rand"
)

const (
	// earthRadius in meters for haversine distances.
	earthRadius = 6371000

	// winHalfSize is the half-width in degrees of the square win area
	// built around a target location.
	winHalfSize = 0.001

	// edgeTolerance accepts guesses this close (in degrees) to a
	// polygon edge as inside. Roughly 11 meters at the equator.
	edgeTolerance = 0.0001

	// metersPerDegree approximates one degree of latitude.
	metersPerDegree = 111320
)

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// PolygonPoint is one vertex of a win polygon. Altitude is carried for
// 3D map rendering and ignored by containment checks.
type PolygonPoint struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Altitude float64 `json:"altitude"`
}

// WinPolygon builds the closed square win area around a target. The
// first vertex is repeated at the end.
func WinPolygon(target LatLng) []PolygonPoint {
	n := target.Lat + winHalfSize
	s := target.Lat - winHalfSize
	e := target.Lng + winHalfSize
	w := target.Lng - winHalfSize
	return []PolygonPoint{
		{Lat: s, Lng: w, Altitude: 100},
		{Lat: s, Lng: e, Altitude: 100},
		{Lat: n, Lng: e, Altitude: 100},
		{Lat: n, Lng: w, Altitude: 100},
		{Lat: s, Lng: w, Altitude: 100},
	}
}

// PointInPolygon reports whether p lies inside the polygon, using an
// even-odd ray cast over vertices rounded to 6 decimal places. Points
// within edgeTolerance of any edge count as inside, so guesses landing
// exactly on a boundary are not rejected by floating point noise.
func PointInPolygon(p LatLng, polygon []PolygonPoint) bool {
	if len(polygon) < 3 {
		return false
	}

	verts := make([]LatLng, len(polygon))
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for i, v := range polygon {
		verts[i] = LatLng{Lat: round6(v.Lat), Lng: round6(v.Lng)}
		minLat = math.Min(minLat, verts[i].Lat)
		maxLat = math.Max(maxLat, verts[i].Lat)
		minLng = math.Min(minLng, verts[i].Lng)
		maxLng = math.Max(maxLng, verts[i].Lng)
	}

	if p.Lat < minLat-edgeTolerance || p.Lat > maxLat+edgeTolerance ||
		p.Lng < minLng-edgeTolerance || p.Lng > maxLng+edgeTolerance {
		return false
	}

	inside := false
	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		vi, vj := verts[i], verts[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			x := (vj.Lng-vi.Lng)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if p.Lng < x {
				inside = !inside
			}
		}
	}
	if inside {
		return true
	}

	for i, j := 0, len(verts)-1; i < len(verts); j, i = i, i+1 {
		if distanceToSegment(p, verts[i], verts[j]) <= edgeTolerance {
			return true
		}
	}
	return false
}

// distanceToSegment is the planar distance in degrees from p to the
// segment a-b. Good enough at win-polygon scale.
func distanceToSegment(p, a, b LatLng) float64 {
	dx := b.Lng - a.Lng
	dy := b.Lat - a.Lat
	if dx == 0 && dy == 0 {
		return math.Hypot(p.Lng-a.Lng, p.Lat-a.Lat)
	}
	t := ((p.Lng-a.Lng)*dx + (p.Lat-a.Lat)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.Lng-(a.Lng+t*dx), p.Lat-(a.Lat+t*dy))
}

// Score computes the round score from the guess distance in meters and
// the seconds left on the round clock. Distance eats 1 point per 10
// meters up to 1000, time adds 8.33 points per remaining second, and
// the result is rounded before clamping at zero.
func Score(distanceMeters, secondsRemaining float64) int {
	base := 1000 - math.Min(1000, distanceMeters/10)
	bonus := secondsRemaining * 8.33
	return int(math.Max(0, math.Round(base+bonus)))
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// StartPosition picks a spawn point 2 to 10 km from the target in a
// random direction, clamped to the playable bounds so players never
// spawn outside the map.
func StartPosition(rng *rand.Rand, target LatLng, b Bounds) LatLng {
	bearing := rng.Float64() * 2 * math.Pi
	dist := 2000 + rng.Float64()*8000

	dLat := dist * math.Cos(bearing) / metersPerDegree
	dLng := dist * math.Sin(bearing) / (metersPerDegree * math.Cos(target.Lat*math.Pi/180))

	return LatLng{
		Lat: clamp(target.Lat+dLat, b.South, b.North),
		Lng: clamp(target.Lng+dLng, b.West, b.East),
	}
}

// ViewPosition offsets the target by winHalfSize in a random direction
// so the camera does not point straight at the answer, clamped to the
// playable bounds.
func ViewPosition(rng *rand.Rand, target LatLng, b Bounds) LatLng {
	angle := rng.Float64() * 2 * math.Pi
	return LatLng{
		Lat: clamp(target.Lat+math.Cos(angle)*winHalfSize, b.South, b.North),
		Lng: clamp(target.Lng+math.Sin(angle)*winHalfSize, b.West, b.East),
	}
}

// InBounds reports whether p lies inside b.
func InBounds(p LatLng, b Bounds) bool {
	return p.Lat >= b.South && p.Lat <= b.North &&
		p.Lng >= b.West && p.Lng <= b.East
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
