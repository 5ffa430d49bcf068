package analyze

import (
	"encoding/json"
	"strings"
)

// FieldFallback records one field that was substituted with its null/empty
// default during defensive parsing. It is telemetry, not an error: the
// analyzer still returns a well-typed result.
type FieldFallback struct {
	Field  string
	Reason string
}

// parseResult defensively parses a raw provider response. It never fails:
// a malformed response yields an all-null result plus fallback reports, and
// a field of the wrong type yields that field's default. Theme ids outside
// the supplied catalog are dropped.
func parseResult(raw string, themes []ThemeCatalogEntry) (EnrichmentResult, []FieldFallback) {
	var res EnrichmentResult
	var fallbacks []FieldFallback

	payload := extractJSONObject(raw)
	if payload == "" {
		return res, []FieldFallback{{Field: "response", Reason: "no_json_object"}}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return res, []FieldFallback{{Field: "response", Reason: "invalid_json"}}
	}

	res.Title, fallbacks = parseStringField(fields, "title", fallbacks)
	res.Summary, fallbacks = parseStringField(fields, "summary", fallbacks)

	if raw, ok := fields["keywords"]; ok && !isNull(raw) {
		var kw []string
		if err := json.Unmarshal(raw, &kw); err != nil {
			fallbacks = append(fallbacks, FieldFallback{Field: "keywords", Reason: "wrong_type"})
		} else {
			res.Keywords = kw
		}
	}

	res.EstimatedDuration, fallbacks = parseIntField(fields, "estimatedDuration", 1, 600, fallbacks)
	res.EstimatedDifficulty, fallbacks = parseIntField(fields, "estimatedDifficulty", 1, 5, fallbacks)

	if raw, ok := fields["themeIds"]; ok && !isNull(raw) {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			fallbacks = append(fallbacks, FieldFallback{Field: "themeIds", Reason: "wrong_type"})
		} else {
			known := make(map[string]bool, len(themes))
			for _, t := range themes {
				known[t.ID] = true
			}
			for _, id := range ids {
				if known[id] {
					res.ThemeIDs = append(res.ThemeIDs, id)
				} else {
					// Vocabulary drift or hallucination: drop, report, keep going.
					fallbacks = append(fallbacks, FieldFallback{Field: "themeIds", Reason: "unknown_id:" + id})
				}
			}
		}
	}

	if raw, ok := fields["exerciseKind"]; ok && !isNull(raw) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			fallbacks = append(fallbacks, FieldFallback{Field: "exerciseKind", Reason: "wrong_type"})
		} else {
			kind := ExerciseKind(strings.ToUpper(strings.TrimSpace(s)))
			if validKind(kind) {
				res.Kind = &kind
			} else {
				fallbacks = append(fallbacks, FieldFallback{Field: "exerciseKind", Reason: "unknown_kind:" + s})
			}
		}
	}

	return res, fallbacks
}

func parseStringField(fields map[string]json.RawMessage, name string, fallbacks []FieldFallback) (*string, []FieldFallback) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, fallbacks
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, append(fallbacks, FieldFallback{Field: name, Reason: "wrong_type"})
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fallbacks
	}
	return &s, fallbacks
}

func parseIntField(fields map[string]json.RawMessage, name string, min, max int, fallbacks []FieldFallback) (*int, []FieldFallback) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, fallbacks
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, append(fallbacks, FieldFallback{Field: name, Reason: "wrong_type"})
	}
	if n < min || n > max {
		return nil, append(fallbacks, FieldFallback{Field: name, Reason: "out_of_range"})
	}
	return &n, fallbacks
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// extractJSONObject strips markdown code fences and surrounding prose,
// returning the first top-level {...} block, or "" when none exists.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
