package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("```json\n?|\n?```")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)(\w+)(\s*:)`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

type batchEnvelope struct {
	Landmarks []candidate `json:"landmarks"`
}

// parseBatch extracts the candidate array from a raw model response.
// Markdown fences are stripped and a bare top-level array is wrapped in
// a landmarks envelope. On parse failure one repair pass fixes the
// usual model mistakes (trailing commas, unquoted keys, stray
// whitespace) and parsing is retried once; a second failure rejects
// the whole batch.
func parseBatch(raw string) ([]candidate, error) {
	clean := strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	if strings.HasPrefix(clean, "[") {
		clean = `{"landmarks":` + clean + `}`
	}

	var env batchEnvelope
	if err := decodeNumbers(clean, &env); err != nil {
		repaired := repairJSON(clean)
		if err := decodeNumbers(repaired, &env); err != nil {
			return nil, fmt.Errorf("unparseable generation response: %w", err)
		}
	}
	if env.Landmarks == nil {
		return nil, fmt.Errorf("generation response missing landmarks array")
	}
	return env.Landmarks, nil
}

func repairJSON(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = strings.NewReplacer("\n", "", "\r", "", "\t", "").Replace(s)
	return spaceRe.ReplaceAllString(s, " ")
}

// decodeNumbers unmarshals with UseNumber so coordinate literals keep
// their decimal precision for validation.
func decodeNumbers(s string, dest any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	return dec.Decode(dest)
}
