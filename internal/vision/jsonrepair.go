package vision

import (
	"regexp"
	"strings"
)

var jsonStringRe = regexp.MustCompile(`(?s)"[^"\\]*(?:\\.[^"\\]*)*"`)

// extractJSON pulls the JSON object out of a model response. Models
// sometimes wrap JSON in fenced code blocks or surround it with prose;
// the cascade tries a ```json fence, then any ``` fence, then the span
// from the first '{' to the last '}'.
func extractJSON(text string) string {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+len("```"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// repairJSON escapes raw control characters inside string literals.
// Models occasionally emit literal newlines inside feedback strings,
// which strict JSON rejects.
func repairJSON(raw string) string {
	return jsonStringRe.ReplaceAllStringFunc(raw, func(s string) string {
		s = strings.ReplaceAll(s, "\n", `\n`)
		s = strings.ReplaceAll(s, "\r", `\r`)
		s = strings.ReplaceAll(s, "\t", `\t`)
		return s
	})
}
