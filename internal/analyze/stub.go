package analyze

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// StubAnalyzer is the offline analyzer variant: no external call, same
// output for the same input. Used by the test suite and local development.
type StubAnalyzer struct{}

func NewStubAnalyzer() *StubAnalyzer { return &StubAnalyzer{} }

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

func (s *StubAnalyzer) Analyze(ctx context.Context, statementText string, availableThemes []ThemeCatalogEntry) (EnrichmentResult, error) {
	_ = ctx
	text := strings.TrimSpace(statementText)
	if text == "" {
		return EnrichmentResult{}, nil
	}

	var res EnrichmentResult

	if title := firstLine(text); title != "" {
		res.Title = &title
	}
	if summary := firstSentences(text, 2, 200); summary != "" {
		res.Summary = &summary
	}

	words := wordRe.FindAllString(strings.ToLower(text), -1)
	res.Keywords = topWords(words, 5)

	dur := len(words)/30 + 5
	res.EstimatedDuration = &dur

	diff := 2
	switch {
	case len(words) > 300:
		diff = 4
	case len(words) > 100:
		diff = 3
	}
	res.EstimatedDifficulty = &diff

	lower := strings.ToLower(text)
	for _, t := range availableThemes {
		label := strings.ToLower(strings.TrimSpace(t.Label))
		if label != "" && strings.Contains(lower, label) {
			res.ThemeIDs = append(res.ThemeIDs, t.ID)
		}
	}

	kind := KindNormal
	switch {
	case strings.Contains(lower, "qcm") || strings.Contains(lower, "choix multiple"):
		kind = KindQCM
	case strings.Contains(lower, "vrai ou faux") || strings.Contains(lower, "true or false"):
		kind = KindTrueFalse
	}
	res.Kind = &kind

	return res, nil
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return cutRunes(line, 60)
		}
	}
	return ""
}

func firstSentences(text string, n, maxLen int) string {
	flat := strings.Join(strings.Fields(text), " ")
	count := 0
	for i, r := range flat {
		if r == '.' || r == '?' || r == '!' {
			count++
			if count >= n {
				flat = flat[:i+1]
				break
			}
		}
	}
	return strings.TrimSpace(cutRunes(flat, maxLen))
}

// topWords picks the n most frequent words longer than four runes,
// breaking ties alphabetically so the output is stable.
func topWords(words []string, n int) []string {
	counts := map[string]int{}
	for _, w := range words {
		if len([]rune(w)) > 4 {
			counts[w]++
		}
	}
	unique := make([]string, 0, len(counts))
	for w := range counts {
		unique = append(unique, w)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return unique[i] < unique[j]
	})
	if len(unique) > n {
		unique = unique[:n]
	}
	return unique
}
