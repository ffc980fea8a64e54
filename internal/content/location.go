// Package content generates, validates, deduplicates and issues game
// locations sourced from a text-generation provider, with per-user
// banks and a rolling play-history exclusion window.
package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/terraguess/api/internal/geo"
)

// GameType selects which location pool and prompt a game draws from.
type GameType string

const (
	GameTypeClassic    GameType = "classic"
	GameTypeHiddenGems GameType = "hiddenGems"
	GameTypeContinent  GameType = "continent"
)

func (g GameType) Valid() bool {
	switch g {
	case GameTypeClassic, GameTypeHiddenGems, GameTypeContinent:
		return true
	}
	return false
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

type LocationInfo struct {
	Facts                  []string `json:"facts"`
	HistoricalSignificance string   `json:"historicalSignificance"`
	CulturalSignificance   string   `json:"culturalSignificance"`
	LocationType           string   `json:"locationType"`
	Address                Address  `json:"address"`
}

type TargetLocation struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
}

// Location is one playable round target. Immutable once generated.
type Location struct {
	TargetLocation TargetLocation `json:"targetLocation"`
	StartLocation  geo.LatLng     `json:"startLocation"`
	Country        string         `json:"country"`
	CountryBounds  geo.Bounds     `json:"countryBounds"`
	ViewPosition   geo.LatLng     `json:"viewPosition"`
	LocationInfo   LocationInfo   `json:"locationInfo"`
}

// Key is the location identity used for deduplication and history
// matching: lowercased name plus coordinates at 6 decimal places.
func Key(name string, lat, lng float64) string {
	return strings.ToLower(fmt.Sprintf("%s-%.6f-%.6f", name, lat, lng))
}

func (l Location) Key() string {
	return Key(l.TargetLocation.Name, l.TargetLocation.Lat, l.TargetLocation.Lng)
}

// candidate is a raw generated landmark before validation. Coordinates
// stay json.Number so the literal decimal precision survives parsing.
type candidate struct {
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Lat           json.Number `json:"lat"`
	Lng           json.Number `json:"lng"`
	Country       string      `json:"country"`
	CountryBounds struct {
		North json.Number `json:"north"`
		South json.Number `json:"south"`
		East  json.Number `json:"east"`
		West  json.Number `json:"west"`
	} `json:"countryBounds"`
	Address                Address  `json:"address"`
	Facts                  []string `json:"facts"`
	HistoricalSignificance string   `json:"historicalSignificance"`
	CulturalSignificance   string   `json:"culturalSignificance"`
	LocationType           string   `json:"locationType"`
}

// validate checks one generated candidate: allow-listed country,
// coordinate and bounds precision, a complete address, enough
// descriptive detail, and coordinates inside the claimed bounds.
func validate(c candidate) bool {
	if !CountryAllowed(c.Country) {
		return false
	}
	if decimalPlaces(c.Lat) < 5 || decimalPlaces(c.Lng) < 5 {
		return false
	}
	if decimalPlaces(c.CountryBounds.North) < 2 ||
		decimalPlaces(c.CountryBounds.South) < 2 ||
		decimalPlaces(c.CountryBounds.East) < 2 ||
		decimalPlaces(c.CountryBounds.West) < 2 {
		return false
	}
	if c.Address.Street == "" || c.Address.City == "" || c.Address.Country == "" {
		return false
	}
	if len(c.Name) <= 5 || len(c.Description) <= 20 || len(c.Facts) < 3 ||
		len(c.HistoricalSignificance) <= 30 || len(c.CulturalSignificance) <= 30 {
		return false
	}

	point, bounds, err := c.coords()
	if err != nil {
		return false
	}
	return geo.InBounds(point, bounds)
}

func (c candidate) coords() (geo.LatLng, geo.Bounds, error) {
	lat, err := c.Lat.Float64()
	if err != nil {
		return geo.LatLng{}, geo.Bounds{}, err
	}
	lng, err := c.Lng.Float64()
	if err != nil {
		return geo.LatLng{}, geo.Bounds{}, err
	}
	north, err := c.CountryBounds.North.Float64()
	if err != nil {
		return geo.LatLng{}, geo.Bounds{}, err
	}
	south, err := c.CountryBounds.South.Float64()
	if err != nil {
		return geo.LatLng{}, geo.Bounds{}, err
	}
	east, err := c.CountryBounds.East.Float64()
	if err != nil {
		return geo.LatLng{}, geo.Bounds{}, err
	}
	west, err := c.CountryBounds.West.Float64()
	if err != nil {
		return geo.LatLng{}, geo.Bounds{}, err
	}
	return geo.LatLng{Lat: lat, Lng: lng},
		geo.Bounds{North: north, South: south, East: east, West: west}, nil
}

func (c candidate) key() (string, error) {
	p, _, err := c.coords()
	if err != nil {
		return "", err
	}
	return Key(c.Name, p.Lat, p.Lng), nil
}

// decimalPlaces counts digits after the decimal point in the literal,
// so a model answering "48.85" cannot pass as 5-decimal precision even
// though the float values compare equal.
func decimalPlaces(n json.Number) int {
	s := n.String()
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(s) - i - 1
}
