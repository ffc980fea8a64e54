package content

import (
	"fmt"
	"strings"
)

// batchSize is how many candidate locations one generation request
// asks for; minThreshold is the bank level below which replenishment
// kicks in.
const (
	batchSize    = 11
	minThreshold = 10
)

// supportedCountries is the allow-list of countries with full 3D map
// coverage. Generated locations outside this list are rejected.
var supportedCountries = []string{
	"Albania", "Argentina", "Austria", "Australia", "Bosnia & Herzegovina",
	"Belgium", "Bulgaria", "Brazil", "Bahamas", "Canada", "Switzerland",
	"Chile", "Czechia", "Germany", "Denmark", "Finland", "France",
	"United Kingdom", "Greece", "Croatia", "Hungary", "Indonesia",
	"Ireland", "Israel", "India", "Italy", "Japan", "South Korea",
	"Lithuania", "Luxembourg", "Latvia", "Montenegro", "North Macedonia",
	"Malta", "Mexico", "Malaysia", "Netherlands", "Norway", "New Zealand",
	"Philippines", "Poland", "Puerto Rico", "Portugal", "Romania",
	"Serbia", "Sweden", "Singapore", "Slovenia", "Slovakia", "San Marino",
	"Tunisia", "Taiwan", "United States", "South Africa",
}

var allowedCountries = func() map[string]bool {
	m := make(map[string]bool, len(supportedCountries))
	for _, c := range supportedCountries {
		m[c] = true
	}
	return m
}()

func CountryAllowed(country string) bool {
	return allowedCountries[country]
}

const promptExample = `    {
      "name": "Eiffel Tower",
      "description": "Iconic iron lattice tower on the Champ de Mars in Paris",
      "lat": 48.858370,
      "lng": 2.294481,
      "country": "France",
      "countryBounds": {
        "north": 51.09,
        "south": 41.36,
        "east": 9.56,
        "west": -5.14
      },
      "address": {
        "street": "Champ de Mars, 5 Avenue Anatole France",
        "city": "Paris",
        "postalCode": "75007",
        "country": "France"
      },
      "facts": [
        "Completed in 1889",
        "324 meters tall",
        "Most visited paid monument in the world"
      ],
      "historicalSignificance": "Built for the 1889 World's Fair, symbolizing French industrial might.",
      "culturalSignificance": "Global icon of France and romance, featured in countless artworks and films.",
      "locationType": "landmark"
    }`

var promptFocus = map[GameType]string{
	GameTypeClassic:    "Focus on landmarks, museums, art galleries, popular parks, nature tours, restaurants and tourist attractions",
	GameTypeHiddenGems: "Focus on lesser-known but authentic local spots known mainly to locals, with locationType \"hiddenGem\"",
	GameTypeContinent:  "Focus on the best spots in each continent, spreading picks across different continents",
}

// PromptFor builds the generation prompt for one game type.
func PromptFor(gameType GameType) string {
	return fmt.Sprintf(`Generate %d locations as a JSON array. CRITICAL REQUIREMENTS:
    Format each location EXACTLY as follows:
%s
    REQUIREMENTS:
    - ONLY use locations from these countries: %s
    - Use EXACT real-world coordinates with 6+ decimal precision
    - Include complete, accurate street addresses
    - Include EXACT country boundary coordinates
    - Provide at least 3 unique facts
    - Write detailed historical and cultural significance
    - Do not provide the same locations in response
    - %s`,
		batchSize, promptExample, strings.Join(supportedCountries, ", "), promptFocus[gameType])
}
