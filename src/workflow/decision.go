package workflow

import (
	"strings"

	json "github.com/alpkeskin/gotoon"
)

// The model is instructed to answer with a one-field JSON object. The strict
// parse runs first; free-text keyword matching is only the fallback, and
// anything still ambiguous lands on the safe branch.

// parseToolsDecision reads a {"tools_needed": bool} reply. Ambiguity means
// no tools.
func parseToolsDecision(reply string) bool {
	var parsed struct {
		ToolsNeeded *bool `json:"tools_needed"`
	}
	if raw := extractJSON(reply); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil && parsed.ToolsNeeded != nil {
			return *parsed.ToolsNeeded
		}
	}
	return strings.Contains(strings.ToLower(reply), "true")
}

// parseGradeDecision reads a {"route": "generate"|"rewrite"} reply.
// Ambiguity means generate.
func parseGradeDecision(reply string) string {
	var parsed struct {
		Route string `json:"route"`
	}
	if raw := extractJSON(reply); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			switch parsed.Route {
			case RouteGenerate, RouteRewrite:
				return parsed.Route
			}
		}
	}
	lower := strings.ToLower(reply)
	if strings.Contains(lower, RouteGenerate) {
		return RouteGenerate
	}
	if strings.Contains(lower, RouteRewrite) {
		return RouteRewrite
	}
	return RouteGenerate
}

// extractJSON returns the first balanced {...} block in s, or "".
func extractJSON(s string) string {
	start := -1
	end := -1
	depth := 0

	for i, ch := range s {
		if ch == '{' {
			if start == -1 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start != -1 {
				end = i + 1
				break
			}
		}
	}

	if start != -1 && end != -1 {
		return s[start:end]
	}
	return ""
}
