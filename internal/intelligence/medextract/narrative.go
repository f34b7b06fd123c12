package medextract

import (
	"regexp"
	"strings"

	"github.com/medtext/reportiq/internal/domain/report"
)

// sectionSpec configures one bounded narrative block: the labels that open
// it, the heading tokens that terminate it, how multi-line content is
// joined, and the presentation length cap.  Diagnosis and Medications share
// the same extractor so the two terminator sets cannot drift apart
// independently of this table.
type sectionSpec struct {
	openers     []string
	terminators []string
	joiner      string
	maxLen      int

	openRe *regexp.Regexp
	termRe *regexp.Regexp
}

func newSectionSpec(openers, terminators []string, joiner string, maxLen int) *sectionSpec {
	return &sectionSpec{
		openers:     openers,
		terminators: terminators,
		joiner:      joiner,
		maxLen:      maxLen,
		openRe: regexp.MustCompile(
			`(?i)\b(?:` + strings.Join(quoteAll(openers), "|") + `)\b\s*[:\-]?\s*`),
		termRe: regexp.MustCompile(
			`(?i)\b(?:` + strings.Join(quoteAll(terminators), "|") + `)\b`),
	}
}

func quoteAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = regexp.QuoteMeta(t)
	}
	return out
}

var leadingMarkerRe = regexp.MustCompile(`^[\d.)\-•*\s]+`)

// extract returns the block content between the opener label and whichever
// comes first: the next terminator heading, a blank line, or end of text.
// Embedded newlines are joined, leading numbering stripped, and the result
// truncated to maxLen.  The truncation is a presentation limit, not
// validation.
func (s *sectionSpec) extract(text string) (string, bool) {
	loc := s.openRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	body := text[loc[1]:]

	end := len(body)
	if term := s.termRe.FindStringIndex(body); term != nil && term[0] < end {
		end = term[0]
	}
	if para := strings.Index(body, "\n\n"); para >= 0 && para < end {
		end = para
	}
	body = body[:end]

	lines := strings.Split(body, "\n")
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(leadingMarkerRe.ReplaceAllString(line, ""))
		line = strings.TrimRight(line, ",;")
		if line != "" {
			parts = append(parts, line)
		}
	}
	joined := strings.TrimSpace(strings.Join(parts, s.joiner))
	if joined == "" {
		return "", false
	}
	if len(joined) > s.maxLen {
		joined = joined[:s.maxLen]
	}
	return joined, true
}

// The two specs must stay symmetric: each field's openers appear in the
// other's terminators so neither block can leak into the other.
var (
	diagnosisSpec = newSectionSpec(
		[]string{"Diagnosis"},
		[]string{"Medications", "Rx", "Prescribed", "OPINION", "PROGNOSIS", "DECLARATION", "Date", "Signature"},
		" ",
		500,
	)

	medicationsSpec = newSectionSpec(
		[]string{"Medications", "Rx", "Prescribed"},
		[]string{"Diagnosis", "OPINION", "PROGNOSIS", "DECLARATION", "Date", "Signature"},
		", ",
		400,
	)
)

// ExtractNarrative fills Diagnosis and Medications on the given record.
// Free-text clinical blocks have no closing delimiter of their own, so each
// block runs until the next known section heading or end of text.
func ExtractNarrative(text string, rec *report.PatientRecord) {
	if v, ok := diagnosisSpec.extract(text); ok {
		rec.Diagnosis = v
	}
	if v, ok := medicationsSpec.extract(text); ok {
		rec.Medications = v
	}
}
