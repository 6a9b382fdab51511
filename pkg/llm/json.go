package llm

import "strings"

// CleanJSONResponse removes code block markers (```json ... ```) that
// models wrap around JSON output, so the remainder can be unmarshalled.
func CleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	return strings.TrimSpace(response)
}
