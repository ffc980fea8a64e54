// Package achievement evaluates which achievements a player's
// aggregate stats unlock. Evaluation is pure and recomputes the full
// unlocked set every call; callers diff against previously earned ids.
package achievement

// Type selects which stat an achievement's requirement tests.
type Type string

const (
	TypeScore    Type = "score"
	TypeGames    Type = "games"
	TypeAccuracy Type = "accuracy"
	TypeSpeed    Type = "speed"
	TypeSpecial  Type = "special"
)

// Achievement describes one unlockable badge.
type Achievement struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Type        Type    `json:"type"`
	Requirement float64 `json:"requirement"`
}

// Stats is the aggregate player state an evaluation runs against,
// already including the game that just finished. FastestTime must be a
// real recorded time; callers with no recorded time pass a value above
// every speed requirement, not zero.
type Stats struct {
	Score              int
	GamesPlayed        int
	Accuracy           float64
	FastestTime        float64
	ContinentsExplored []string
	HiddenGemsFound    int
}

// Catalogue lists every achievement in display order.
var Catalogue = []Achievement{
	{ID: "score_1000", Name: "Globe Trotter", Description: "Reach a score of 1,000 points", Icon: "🌍", Type: TypeScore, Requirement: 1000},
	{ID: "score_5000", Name: "World Explorer", Description: "Reach a score of 5,000 points", Icon: "🗺️", Type: TypeScore, Requirement: 5000},
	{ID: "score_10000", Name: "Geography Master", Description: "Reach a score of 10,000 points", Icon: "🏆", Type: TypeScore, Requirement: 10000},
	{ID: "games_10", Name: "Dedicated Explorer", Description: "Play 10 games", Icon: "🧭", Type: TypeGames, Requirement: 10},
	{ID: "games_50", Name: "Adventure Seeker", Description: "Play 50 games", Icon: "🎯", Type: TypeGames, Requirement: 50},
	{ID: "accuracy_90", Name: "Precision Navigator", Description: "Achieve 90% accuracy in a game", Icon: "🎯", Type: TypeAccuracy, Requirement: 90},
	{ID: "speed_10", Name: "Lightning Fast", Description: "Find a location in under 10 seconds", Icon: "⚡", Type: TypeSpeed, Requirement: 10},
	{ID: "continent_master", Name: "Continent Master", Description: "Win games in all continents", Icon: "🌎", Type: TypeSpecial, Requirement: 1},
	{ID: "hidden_gems_5", Name: "Hidden Treasures", Description: "Discover 5 hidden gems", Icon: "💎", Type: TypeSpecial, Requirement: 5},
}

// ByID returns the catalogue entry for id, or false when unknown.
func ByID(id string) (Achievement, bool) {
	for _, a := range Catalogue {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Evaluate returns every achievement the stats satisfy, in catalogue
// order. Score, games and accuracy unlock at or above the requirement,
// speed at or below it.
func Evaluate(s Stats) []Achievement {
	var earned []Achievement
	for _, a := range Catalogue {
		unlocked := false
		switch a.Type {
		case TypeScore:
			unlocked = float64(s.Score) >= a.Requirement
		case TypeGames:
			unlocked = float64(s.GamesPlayed) >= a.Requirement
		case TypeAccuracy:
			unlocked = s.Accuracy >= a.Requirement
		case TypeSpeed:
			unlocked = s.FastestTime <= a.Requirement
		case TypeSpecial:
			switch a.ID {
			case "continent_master":
				unlocked = len(s.ContinentsExplored) >= 3
			case "hidden_gems_5":
				unlocked = s.HiddenGemsFound >= 5
			}
		}
		if unlocked {
			earned = append(earned, a)
		}
	}
	return earned
}

// EvaluateIDs is Evaluate reduced to achievement ids.
func EvaluateIDs(s Stats) []string {
	earned := Evaluate(s)
	ids := make([]string, len(earned))
	for i, a := range earned {
		ids[i] = a.ID
	}
	return ids
}
