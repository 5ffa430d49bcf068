package segment

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/local/exampipeline/internal/extract"
)

// Candidate flags. The vocabulary is open: reviewers treat any non-empty
// flag list as "check this boundary by hand".
const (
	FlagNoMarker      = "no_marker"
	FlagGapBackfilled = "gap_backfilled"
	FlagSharedPage    = "shared_boundary_page"
	FlagEvenSplit     = "even_split"
	FlagNumberingGap  = "numbering_gap"
)

// Document-level flags.
const (
	FlagCountMismatch  = "count_mismatch"
	FlagNoMarkersFound = "no_markers_found"
	FlagUnevenSplit    = "uneven_page_split"
)

// Candidate is a proposed exercise boundary. It is advisory: it becomes
// authoritative only once the catalogue layer accepts it after review.
type Candidate struct {
	Number            int                `json:"exerciseNumber"`
	Label             string             `json:"label,omitempty"`
	Range             *extract.PageRange `json:"range,omitempty"`
	Points            *int               `json:"points,omitempty"`
	EstimatedDuration *int               `json:"estimatedDuration,omitempty"`
	Confidence        float64            `json:"confidence"`
	Flags             []string           `json:"flags"`
}

// Suggestion is the result of one segmentation pass.
type Suggestion struct {
	Candidates    []Candidate `json:"candidates"`
	DocumentFlags []string    `json:"documentFlags"`
}

var (
	defaultMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(?:exercice|exercise)\s*(?:n\s*[°o]\s*)?(\d+)`),
		regexp.MustCompile(`(?i)^\s*probl[eè]me\s*(?:n\s*[°o]\s*)?(\d+)`),
		regexp.MustCompile(`(?i)^\s*(?:exercice|exercise)\b`),
	}
	pointsRe   = regexp.MustCompile(`(?i)[(/\s](\d{1,2})\s*(?:points?|pts?)\b`)
	durationRe = regexp.MustCompile(`(?i)(\d{1,3})\s*(?:min(?:utes)?)\b`)
)

// Rough exam convention: one point is about five minutes of work.
const minutesPerPoint = 5

// Suggester partitions a document's pages into exercise candidates from
// lexical cues. It is fully deterministic: same pages in, same candidates
// and flags out. No hidden randomness, no model call.
type Suggester struct {
	MarkerPatterns []*regexp.Regexp
}

func NewSuggester() *Suggester {
	return &Suggester{MarkerPatterns: defaultMarkers}
}

type marker struct {
	page   int
	number int // 0 when the heading carries no number
	label  string
	points *int
	dur    *int
}

// Suggest proposes a partition of the document into exercises. expectedCount
// is a soft prior: a mismatch is reported as a document flag, never forced.
func (s *Suggester) Suggest(pages []extract.PageText, expectedCount int) Suggestion {
	pageCount := len(pages)
	if pageCount == 0 {
		return Suggestion{DocumentFlags: []string{FlagNoMarkersFound}}
	}

	markers := s.scan(pages)
	if len(markers) == 0 {
		return s.withoutMarkers(pageCount, expectedCount)
	}

	sug := Suggestion{}
	// Enforce strictly increasing starts so sibling ranges never overlap,
	// even when two headings share a page. A heading with no page left to
	// claim is merged into the preceding candidate rather than duplicating
	// its range.
	type placement struct {
		marker
		start  int
		shared bool
	}
	var placed []placement
	for _, m := range markers {
		start := m.page
		shared := false
		if n := len(placed); n > 0 && start <= placed[n-1].start {
			start = placed[n-1].start + 1
			shared = true
		}
		if start > pageCount {
			if len(placed) == 0 {
				placed = append(placed, placement{marker: m, start: pageCount, shared: true})
				continue
			}
			last := &placed[len(placed)-1]
			last.shared = true
			if m.label != "" {
				last.label += " / " + m.label
			}
			continue
		}
		placed = append(placed, placement{marker: m, start: start, shared: shared})
	}

	backfilled := false
	if placed[0].start > 1 {
		// Preamble pages belong to the first exercise.
		placed[0].start = 1
		backfilled = true
	}

	prevNumber := 0
	for i, p := range placed {
		end := pageCount
		if i < len(placed)-1 {
			end = placed[i+1].start - 1
		}

		number := p.number
		if number == 0 {
			number = i + 1
		}

		c := Candidate{
			Number:            number,
			Label:             p.label,
			Range:             &extract.PageRange{Start: p.start, End: end},
			Points:            p.points,
			EstimatedDuration: p.dur,
			Confidence:        0.9,
			Flags:             []string{},
		}
		if c.EstimatedDuration == nil && c.Points != nil {
			d := *c.Points * minutesPerPoint
			c.EstimatedDuration = &d
		}
		if p.number == 0 {
			c.Confidence -= 0.2
			c.Flags = append(c.Flags, FlagNoMarker)
		}
		if p.shared {
			c.Confidence -= 0.2
			c.Flags = append(c.Flags, FlagSharedPage)
		}
		if i == 0 && backfilled {
			c.Confidence -= 0.1
			c.Flags = append(c.Flags, FlagGapBackfilled)
		}
		if prevNumber > 0 && p.number > 0 && p.number != prevNumber+1 {
			c.Confidence -= 0.1
			c.Flags = append(c.Flags, FlagNumberingGap)
		}
		if p.number > 0 {
			prevNumber = p.number
		}
		if c.Confidence < 0 {
			c.Confidence = 0
		}
		sug.Candidates = append(sug.Candidates, c)
	}

	if expectedCount > 0 && expectedCount != len(sug.Candidates) {
		sug.DocumentFlags = append(sug.DocumentFlags, FlagCountMismatch)
	}

	log.Debug().
		Int("candidates", len(sug.Candidates)).
		Int("expected", expectedCount).
		Strs("document_flags", sug.DocumentFlags).
		Msg("segmentation suggested")
	return sug
}

// withoutMarkers falls back to an even page split (or one whole-document
// candidate) and says so loudly: every candidate is flagged and confidence
// stays low.
func (s *Suggester) withoutMarkers(pageCount, expectedCount int) Suggestion {
	sug := Suggestion{DocumentFlags: []string{FlagNoMarkersFound}}

	n := expectedCount
	if n <= 0 {
		n = 1
	}
	if n > pageCount {
		n = pageCount
	}
	if pageCount%n != 0 {
		sug.DocumentFlags = append(sug.DocumentFlags, FlagUnevenSplit)
	}

	per := pageCount / n
	rem := pageCount % n
	start := 1
	for i := 0; i < n; i++ {
		size := per
		if i < rem {
			size++
		}
		end := start + size - 1
		conf := 0.2
		flags := []string{FlagNoMarker, FlagEvenSplit}
		if n == 1 {
			conf = 0.1
			flags = []string{FlagNoMarker}
		}
		sug.Candidates = append(sug.Candidates, Candidate{
			Number:     i + 1,
			Range:      &extract.PageRange{Start: start, End: end},
			Confidence: conf,
			Flags:      flags,
		})
		start = end + 1
	}
	return sug
}

// scan walks the pages line by line and records the first occurrence of each
// exercise heading, together with nearby points and duration cues.
func (s *Suggester) scan(pages []extract.PageText) []marker {
	var markers []marker
	seen := map[int]bool{}

	for _, page := range pages {
		lines := strings.Split(page.Text, "\n")
		for li, line := range lines {
			m, ok := s.matchHeading(line)
			if !ok {
				continue
			}
			if m.number > 0 && seen[m.number] {
				continue
			}
			if m.number > 0 {
				seen[m.number] = true
			}
			m.page = page.Page
			// Points and duration usually sit on the heading line or just below.
			window := line
			for j := li + 1; j < len(lines) && j <= li+3; j++ {
				window += "\n" + lines[j]
			}
			if pm := pointsRe.FindStringSubmatch(window); pm != nil {
				if v, err := strconv.Atoi(pm[1]); err == nil && v > 0 {
					m.points = &v
				}
			}
			if dm := durationRe.FindStringSubmatch(window); dm != nil {
				if v, err := strconv.Atoi(dm[1]); err == nil && v > 0 {
					m.dur = &v
				}
			}
			markers = append(markers, m)
		}
	}
	return markers
}

func (s *Suggester) matchHeading(line string) (marker, bool) {
	for _, re := range s.MarkerPatterns {
		sub := re.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		m := marker{label: strings.TrimSpace(line)}
		if len(sub) > 1 && sub[1] != "" {
			if n, err := strconv.Atoi(sub[1]); err == nil {
				m.number = n
			}
		}
		m.label = cutRunes(m.label, 80)
		return m, true
	}
	return marker{}, false
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
