package normalize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ParseLevel identifies which strategy produced the key/value map.
type ParseLevel string

const (
	LevelJSON    ParseLevel = "json"
	LevelLiteral ParseLevel = "literal"
	LevelRegex   ParseLevel = "regex"
	LevelRaw     ParseLevel = "raw"
)

// parse runs the ordered fallback chain. It never fails: when nothing can be
// extracted the raw text itself becomes the result at LevelRaw.
func parse(rawText string) (map[string]string, ParseLevel) {
	text := stripFences(rawText)

	if m, err := parseJSON(text); err == nil && len(m) > 0 {
		return m, LevelJSON
	}
	if m, err := parseLiteral(text); err == nil && len(m) > 0 {
		return m, LevelLiteral
	}
	if m := scavengePairs(text); len(m) > 0 {
		return m, LevelRegex
	}
	return nil, LevelRaw
}

func parseJSON(text string) (map[string]string, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, err
	}
	return stringify(payload), nil
}

// parseLiteral repairs the single-quoted dict-style text some provider
// versions emit ({'Scene': 'combat'}) into JSON and parses the result. It is
// restricted to brace-delimited input and performs a pure text transform;
// nothing is ever evaluated.
func parseLiteral(text string) (map[string]string, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, fmt.Errorf("not a brace-delimited literal")
	}
	return parseJSON(repairLiteral(trimmed))
}

// repairLiteral rewrites single-quoted strings as double-quoted JSON strings
// and python-style constants as their JSON forms. Content inside quotes is
// preserved byte for byte apart from the necessary escaping.
func repairLiteral(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	const (
		stateBare = iota
		stateSingle
		stateDouble
	)
	state := stateBare
	escaped := false
	runes := []rune(text)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch state {
		case stateBare:
			switch r {
			case '\'':
				state = stateSingle
				b.WriteByte('"')
			case '"':
				state = stateDouble
				b.WriteByte('"')
			default:
				if constant, skip := bareConstant(runes[i:]); constant != "" {
					b.WriteString(constant)
					i += skip - 1
					continue
				}
				b.WriteRune(r)
			}
		case stateSingle:
			if escaped {
				escaped = false
				if r == '\'' {
					b.WriteByte('\'')
					continue
				}
				b.WriteByte('\\')
				b.WriteRune(r)
				continue
			}
			switch r {
			case '\\':
				escaped = true
			case '\'':
				state = stateBare
				b.WriteByte('"')
			case '"':
				b.WriteString(`\"`)
			default:
				b.WriteRune(r)
			}
		case stateDouble:
			if escaped {
				escaped = false
				b.WriteByte('\\')
				b.WriteRune(r)
				continue
			}
			switch r {
			case '\\':
				escaped = true
			case '"':
				state = stateBare
				b.WriteByte('"')
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func bareConstant(rest []rune) (string, int) {
	for python, jsonForm := range map[string]string{
		"True":  "true",
		"False": "false",
		"None":  "null",
	} {
		if hasRunePrefix(rest, python) {
			return jsonForm, len(python)
		}
	}
	return "", 0
}

func hasRunePrefix(runes []rune, prefix string) bool {
	if len(runes) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if runes[i] != r {
			return false
		}
	}
	// Constants must stand alone, not begin an identifier.
	if len(runes) > len(prefix) {
		next := runes[len(prefix)]
		if next == '_' || (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') || (next >= '0' && next <= '9') {
			return false
		}
	}
	return true
}

var (
	quotedPairPattern = regexp.MustCompile(`["']([^"']+)["']\s*:\s*["']([^"']*)["']`)
	barePairPattern   = regexp.MustCompile(`(?m)([A-Za-z][A-Za-z0-9 _./-]*?)\s*:\s*([^,\n{}"']+)`)
)

// scavengePairs extracts whatever key/value fragments survive in otherwise
// unparseable text, quoted pairs first, bare "key: value" runs second.
func scavengePairs(text string) map[string]string {
	out := make(map[string]string)

	for _, match := range quotedPairPattern.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(match[1])
		value := strings.TrimSpace(match[2])
		if key != "" && value != "" {
			out[key] = value
		}
	}

	if len(out) > 0 {
		return out
	}

	for _, match := range barePairPattern.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(match[1])
		value := strings.TrimSpace(match[2])
		if key != "" && value != "" {
			out[key] = value
		}
	}
	return out
}

// stripFences removes a single markdown code fence wrapper when present.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func stringify(payload map[string]any) map[string]string {
	out := make(map[string]string, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			out[key] = v
		case nil:
			// Explicit nulls stay absent.
		case float64, bool:
			out[key] = fmt.Sprintf("%v", v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[key] = string(encoded)
		}
	}
	return out
}
