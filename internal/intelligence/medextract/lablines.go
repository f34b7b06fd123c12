package medextract

import (
	"regexp"
	"strings"

	"github.com/medtext/reportiq/internal/domain/report"
)

// lineRule classifies one shape of lab result line.  Rules are applied in
// declaration order and the first match wins, so more specific shapes must
// precede the generic numeric ones.
type lineRule struct {
	name  string
	re    *regexp.Regexp
	build func(m []string, line string) report.LabTestEntry
}

var labLineRules = []lineRule{
	{
		// Serology panels report a qualitative token rather than a value.
		// Matching them before the numeric shapes keeps a line like
		// "HBsAg 1 : Non-Reactive" from being read as a number.
		name: "qualitative-panel",
		re: regexp.MustCompile(`(?i)^\s*((?:HBs\s*Ag|HBsAg|VDRL|RPR|Anti[-\s]?HCV|HCV|Tri[-\s]?Dot)[A-Za-z0-9 .()/\-]*?)\s*[:\-]?\s*` +
			`((?:Non[-\s]?Reactive|Not\s+detected|Negative|Reactive|Detected|Positive)\b.*?)\s*$`),
		build: func(m []string, line string) report.LabTestEntry {
			return report.LabTestEntry{
				RawName:    strings.TrimSpace(m[1]),
				RawValue:   strings.TrimSpace(m[2]),
				Kind:       report.KindQualitative,
				SourceLine: line,
			}
		},
	},
	{
		// Primary numeric shape: "<name> <value> <unit>".  The unit class
		// admits letters, slashes, percent and the micro/degree signs so
		// strings like "g/dL", "Grams%" and "/cu.mm" all pass through.
		name: "numeric-with-unit",
		re: regexp.MustCompile(`(?i)^\s*([A-Za-z][A-Za-z .,'()/%\-]{2,39}?)\s*[:\-]?\s+` +
			`(\d{1,3}(?:\.\d+)?)\s*` +
			`([A-Za-z%µ°/][A-Za-z%µ°/. ]*?)\s*$`),
		build: func(m []string, line string) report.LabTestEntry {
			return report.LabTestEntry{
				RawName:    strings.TrimSpace(m[1]),
				RawValue:   m[2],
				Unit:       strings.TrimSpace(m[3]),
				Kind:       report.KindNumeric,
				SourceLine: line,
			}
		},
	},
	{
		// Secondary numeric shape covers large counts with thousands
		// separators ("Platelet Count 2,50,000 /cu.mm") and unitless lines.
		name: "numeric-count",
		re: regexp.MustCompile(`(?i)^\s*([A-Za-z][A-Za-z .,'()/%\-]{2,39}?)\s*[:\-]?\s+` +
			`(\d{1,7}(?:,\d{2,3})*(?:\.\d+)?)\s*` +
			`(?:(?:/|per\s+)?([A-Za-z%µ°][A-Za-z%µ°/. ]*?))?\s*$`),
		build: func(m []string, line string) report.LabTestEntry {
			return report.LabTestEntry{
				RawName:    strings.TrimSpace(m[1]),
				RawValue:   m[2],
				Unit:       strings.TrimSpace(m[3]),
				Kind:       report.KindNumeric,
				SourceLine: line,
			}
		},
	},
	{
		// Inline qualitative fallback for any remaining "<name> : <token>"
		// line carrying a recognised result word.
		name: "qualitative-inline",
		re: regexp.MustCompile(`(?i)^\s*([A-Za-z][A-Za-z .,'()/%\-]{2,39}?)\s*[:\-]\s*` +
			`((?:Non[-\s]?Reactive|Not\s+detected|Negative|Reactive|Detected|Positive)\b.*?)\s*$`),
		build: func(m []string, line string) report.LabTestEntry {
			return report.LabTestEntry{
				RawName:    strings.TrimSpace(m[1]),
				RawValue:   strings.TrimSpace(m[2]),
				Kind:       report.KindQualitative,
				SourceLine: line,
			}
		},
	},
}

// patientFieldLabelRe rejects lines already consumed by the demographic and
// vital-sign extractors so "Age : 42" never surfaces as a lab result.
var patientFieldLabelRe = regexp.MustCompile(
	`(?i)^\s*(?:patient\s+name|name|age|sex|gender|date|report\s+date|blood\s*pressure|b\.?\s?p\.?|temp(?:erature)?|diagnosis|medications?|rx|prescribed)\s*[:\-]`)

var innerSpaceRe = regexp.MustCompile(`\s{2,}`)

// ParseLabLines scans normalized text line by line and returns every line
// that matches a known lab result shape, tagged with its value kind.  Lines
// that match nothing are ignored rather than reported.
func ParseLabLines(text string) []report.LabTestEntry {
	var entries []report.LabTestEntry
	for _, line := range strings.Split(text, "\n") {
		line = innerSpaceRe.ReplaceAllString(strings.TrimSpace(line), " ")
		if line == "" || patientFieldLabelRe.MatchString(line) {
			continue
		}
		for _, rule := range labLineRules {
			m := rule.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			entries = append(entries, rule.build(m, line))
			break
		}
	}
	return entries
}
