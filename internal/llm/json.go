package llm

import (
	"encoding/json"
	"strings"
)

// CleanJSON strips markdown fences and surrounding chatter from a model reply.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// DecodeJSON cleans raw and unmarshals it into out.
func DecodeJSON(raw string, out interface{}) error {
	return json.Unmarshal([]byte(CleanJSON(raw)), out)
}
