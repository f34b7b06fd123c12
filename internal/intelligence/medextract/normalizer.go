// Package medextract implements the report extraction and interpretation
// pipeline: text normalization, patient field extraction, vital sign and
// narrative block extraction, per-line lab value parsing, test name
// canonicalization, reference-range interpretation, and alert/summary
// building.  Every stage is a pure function of its input; nothing in this
// package holds state across documents.
package medextract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/medtext/reportiq/pkg/errors"
)

// ErrNoExtractableText aborts a pipeline run: the document contained no
// usable text after normalization.  This is the only fatal condition in the
// pipeline; every other anomaly degrades to a sentinel or advisory alert.
var ErrNoExtractableText = errors.New(errors.ErrCodeNoExtractableText, "no extractable text in report")

// NormalizeText prepares raw extracted text for pattern matching.  Within
// each line, runs of 2+ whitespace characters collapse to a single space and
// control characters from OCR are dropped; line breaks are preserved because
// the lab parser is line-oriented.  Returns ErrNoExtractableText when the
// input is empty or whitespace-only.
func NormalizeText(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrNoExtractableText
	}

	// NFC normalisation first: OCR output mixes composed and decomposed forms.
	raw = norm.NFC.String(raw)

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, collapseLine(line))
	}

	text := strings.TrimSpace(strings.Join(out, "\n"))
	if text == "" {
		return "", ErrNoExtractableText
	}
	return text, nil
}

// collapseLine trims a single line and collapses internal whitespace runs,
// dropping non-printable runes along the way.
func collapseLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	prevSpace := false
	for _, r := range line {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			prevSpace = true
		case unicode.IsControl(r):
			// OCR artifacts; skip without recording a space.
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}
