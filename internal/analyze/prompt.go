package analyze

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const systemPrompt = `You analyze one exercise from an exam paper and return structured metadata.
Respond with a single JSON object and nothing else, matching exactly this schema:
{
  "title": string or null,
  "summary": string or null,
  "keywords": [string],
  "estimatedDuration": integer minutes or null,
  "estimatedDifficulty": integer 1-5 or null,
  "themeIds": [string],
  "exerciseKind": "NORMAL" | "QCM" | "TRUE_FALSE" | "OTHER" | null
}
Rules:
- themeIds may only contain ids from the provided theme list. Use [] if none apply.
- When you are not sure about a field, use null (or an empty array). Never invent values.
- summary is at most two sentences, in the language of the statement.`

// maxStatementChars caps the statement text sent to the provider.
const maxStatementChars = 12000

func buildUserPrompt(statementText string, themes []ThemeCatalogEntry) string {
	var sb strings.Builder

	sb.WriteString("AVAILABLE THEMES (id: label):\n")
	if len(themes) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, t := range themes {
		fmt.Fprintf(&sb, "- %s: %s\n", t.ID, t.Label)
	}

	sb.WriteString("\nEXERCISE STATEMENT:\n")
	sb.WriteString(truncate(statementText, maxStatementChars))
	sb.WriteString("\n\nReturn the JSON object now.")
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return cutRunes(s, max) + "\n[truncated]"
}

// cutRunes truncates s to at most max bytes without splitting a rune.
func cutRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
