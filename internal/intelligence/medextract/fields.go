package medextract

import (
	"regexp"
	"strings"

	"github.com/medtext/reportiq/internal/domain/report"
)

// fieldMatcher is one named extraction strategy for a patient field.  The
// extractor tries a field's matchers in declaration order and takes the first
// success, so fallback precedence is explicit and each strategy can be tested
// in isolation.
type fieldMatcher struct {
	name  string
	re    *regexp.Regexp
	clean func(string) string
}

func (m fieldMatcher) apply(text string) (string, bool) {
	match := m.re.FindStringSubmatch(text)
	if match == nil || len(match) < 2 {
		return "", false
	}
	value := strings.TrimSpace(match[1])
	if m.clean != nil {
		value = m.clean(value)
	}
	if value == "" {
		return "", false
	}
	return value, true
}

// firstMatch runs matchers in order and returns the first successful value,
// or the absence sentinel.
func firstMatch(text string, matchers []fieldMatcher) string {
	for _, m := range matchers {
		if v, ok := m.apply(text); ok {
			return v
		}
	}
	return report.NotFound
}

var (
	// Labels vary in punctuation and spacing: "Name:", "Patient Name -",
	// "NAME".  Separators are permissive (colon, dash, or nothing); the most
	// specific pattern always comes before the looser fallback.
	nameMatchers = []fieldMatcher{
		{
			name:  "labelled-patient-name",
			re:    regexp.MustCompile(`(?i)patient\s+name\s*[:\-]?\s*([A-Za-z][A-Za-z .'\-]*)`),
			clean: cleanName,
		},
		{
			name:  "labelled-name",
			re:    regexp.MustCompile(`(?i)\bname\s*[:\-]?\s*([A-Za-z][A-Za-z .'\-]*)`),
			clean: cleanName,
		},
	}

	ageMatchers = []fieldMatcher{
		{
			name: "labelled-age",
			re:   regexp.MustCompile(`(?i)\bage\s*[:\-]?\s*(\d{1,3})\b`),
		},
		{
			name: "bare-number-with-unit",
			re:   regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:years?|yrs?|y\.?\s*o\.?)\b`),
		},
	}

	sexMatchers = []fieldMatcher{
		{
			name: "labelled-sex",
			re:   regexp.MustCompile(`(?i)\bsex\s*[:\-]?\s*(male|female|m|f)\b`),
		},
		{
			name: "labelled-gender",
			re:   regexp.MustCompile(`(?i)\bgender\s*[:\-]?\s*(male|female|m|f)\b`),
		},
	}

	dateMatchers = []fieldMatcher{
		{
			name: "labelled-date-iso",
			re:   regexp.MustCompile(`(?i)\bdate\s*[:\-]?\s*(\d{4}-\d{2}-\d{2})`),
		},
		{
			name: "labelled-date-dmy",
			re:   regexp.MustCompile(`(?i)\bdate\s*[:\-]?\s*(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4})`),
		},
	}

	trailingAgeRe  = regexp.MustCompile(`(?i)\s+age\b.*$`)
	leadingLabelRe = regexp.MustCompile(`(?i)^(?:of|is)\s+`)
)

// cleanName strips trailing "Age ..." fragments and leading label remnants.
// The double-space cut only fires when ExtractBasicFields is called on text
// that skipped NormalizeText; there it severs column gaps in tabular reports
// before the next column's label bleeds into the name.
func cleanName(v string) string {
	if i := strings.Index(v, "  "); i >= 0 {
		v = v[:i]
	}
	v = trailingAgeRe.ReplaceAllString(v, "")
	v = leadingLabelRe.ReplaceAllString(v, "")
	return strings.Trim(v, " .-")
}

// ExtractBasicFields fills Name, Age, Sex, and Report Date on a fresh record.
// Fields that match nothing keep the absence sentinel; extraction of one
// field never affects another.
func ExtractBasicFields(text string) report.PatientRecord {
	rec := report.NewPatientRecord()
	rec.Name = firstMatch(text, nameMatchers)
	rec.Age = firstMatch(text, ageMatchers)
	rec.Sex = firstMatch(text, sexMatchers)
	rec.ReportDate = firstMatch(text, dateMatchers)
	return rec
}
