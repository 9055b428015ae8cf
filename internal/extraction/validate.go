package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMinResultLength screens out empty-ish backend output. Call sites
// that need a stronger signal (the final document text does) configure a
// higher threshold.
const DefaultMinResultLength = 5

// Normalize coerces a raw backend result to text. Lists are joined
// element-wise with no separator, maps are serialized to JSON, strings pass
// through. The result has trailing whitespace stripped and leading/trailing
// blank lines removed.
func Normalize(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return cleanText(v)
	case []string:
		return cleanText(strings.Join(v, ""))
	case []any:
		var b strings.Builder
		for _, el := range v {
			b.WriteString(fmt.Sprint(el))
		}
		return cleanText(b.String())
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return cleanText(string(data))
	default:
		return cleanText(fmt.Sprint(v))
	}
}

// Screen normalizes a raw result and rejects it when the remaining text is
// shorter than minLength. Rejection is treated identically to a strategy
// failure by the orchestrator.
func Screen(raw any, minLength int) (string, error) {
	if minLength <= 0 {
		minLength = DefaultMinResultLength
	}
	text := Normalize(raw)
	if len(text) < minLength {
		return "", fmt.Errorf("extracted text too short: %d chars, need at least %d", len(text), minLength)
	}
	return text, nil
}

// cleanText strips trailing whitespace and removes blank lines at either end
// while preserving indentation of the first contentful line.
func cleanText(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	for {
		line, rest, found := strings.Cut(s, "\n")
		if found && strings.TrimSpace(line) == "" {
			s = rest
			continue
		}
		break
	}
	return s
}
