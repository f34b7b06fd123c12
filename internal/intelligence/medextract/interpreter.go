package medextract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/medtext/reportiq/internal/domain/report"
)

// FlagStyle selects how a reference range turns a value into a flag.
type FlagStyle int

const (
	// FlagStyleLowHigh flags below-range values Low and above-range High.
	FlagStyleLowHigh FlagStyle = iota
	// FlagStyleHighOnly flags only above-range values; ESR has no
	// clinically meaningful lower bound.
	FlagStyleHighOnly
	// FlagStyleAbnormal collapses both directions into a single Abnormal
	// flag for analytes where the report should not imply direction.
	FlagStyleAbnormal
	// FlagStyleQualitative interprets textual results instead of a range.
	FlagStyleQualitative
)

// RefRange holds one analyte's reference bounds for one sex.  A RangeTable
// is immutable after construction; callers share a single table across
// goroutines without locking.
type RefRange struct {
	Low      float64
	High     float64
	Unit     string
	Style    FlagStyle
	LowNote  string
	HighNote string
}

// Display renders the range for summary output, e.g. "13-17 g/dL".
func (r RefRange) Display() string {
	if r.Style == FlagStyleQualitative {
		return ""
	}
	s := strconv.FormatFloat(r.Low, 'f', -1, 64) + "-" + strconv.FormatFloat(r.High, 'f', -1, 64)
	if r.Unit != "" {
		s += " " + r.Unit
	}
	return s
}

// RangeTable maps canonical test name, then sex, to a reference range.
// Lookups for a sex with no entry fall back to the Unspecified row.
type RangeTable struct {
	ranges map[string]map[report.Sex]RefRange
}

// Lookup returns the range for the given canonical name and sex.
func (t *RangeTable) Lookup(name string, sex report.Sex) (RefRange, bool) {
	bySex, ok := t.ranges[name]
	if !ok {
		return RefRange{}, false
	}
	if r, ok := bySex[sex]; ok {
		return r, true
	}
	r, ok := bySex[report.SexUnspecified]
	return r, ok
}

// DefaultRangeTable builds the built-in adult reference ranges.  Sex-specific
// rows exist only where the bounds genuinely differ; every analyte carries an
// Unspecified row so interpretation never fails on missing demographics.
func DefaultRangeTable() *RangeTable {
	return &RangeTable{ranges: map[string]map[report.Sex]RefRange{
		"Hemoglobin": {
			report.SexMale:        {Low: 13, High: 17, Unit: "g/dL", Style: FlagStyleLowHigh, LowNote: "Possible anemia", HighNote: "Polycythemia or dehydration"},
			report.SexFemale:      {Low: 11, High: 15, Unit: "g/dL", Style: FlagStyleLowHigh, LowNote: "Possible anemia", HighNote: "Polycythemia or dehydration"},
			report.SexUnspecified: {Low: 11, High: 17, Unit: "g/dL", Style: FlagStyleLowHigh, LowNote: "Possible anemia", HighNote: "Polycythemia or dehydration"},
		},
		"WBC Count": {
			report.SexUnspecified: {Low: 4000, High: 11000, Unit: "/cumm", Style: FlagStyleLowHigh, LowNote: "Leukopenia (low immunity)", HighNote: "Leukocytosis (infection/inflammation)"},
		},
		"RBC Count": {
			report.SexMale:        {Low: 4.5, High: 5.9, Unit: "million/cumm", Style: FlagStyleLowHigh, LowNote: "Low red cell count", HighNote: "Elevated red cell count"},
			report.SexFemale:      {Low: 4.1, High: 5.1, Unit: "million/cumm", Style: FlagStyleLowHigh, LowNote: "Low red cell count", HighNote: "Elevated red cell count"},
			report.SexUnspecified: {Low: 4.1, High: 5.9, Unit: "million/cumm", Style: FlagStyleLowHigh, LowNote: "Low red cell count", HighNote: "Elevated red cell count"},
		},
		"Platelet Count": {
			report.SexUnspecified: {Low: 150000, High: 450000, Unit: "/cumm", Style: FlagStyleLowHigh, LowNote: "Thrombocytopenia (bleeding risk)", HighNote: "Thrombocytosis"},
		},
		"ESR": {
			report.SexUnspecified: {Low: 0, High: 20, Unit: "mm/hr", Style: FlagStyleHighOnly, HighNote: "Elevated ESR (inflammation marker)"},
		},
		"Glucose (Fasting)": {
			report.SexUnspecified: {Low: 70, High: 110, Unit: "mg/dL", Style: FlagStyleAbnormal, LowNote: "Fasting glucose outside reference range", HighNote: "Fasting glucose outside reference range"},
		},
		"Glucose": {
			report.SexUnspecified: {Low: 70, High: 140, Unit: "mg/dL", Style: FlagStyleAbnormal, LowNote: "Glucose outside reference range", HighNote: "Glucose outside reference range"},
		},
		"Creatinine": {
			report.SexMale:        {Low: 0.7, High: 1.3, Unit: "mg/dL", Style: FlagStyleAbnormal, LowNote: "Creatinine outside reference range", HighNote: "Creatinine outside reference range (kidney function)"},
			report.SexFemale:      {Low: 0.6, High: 1.1, Unit: "mg/dL", Style: FlagStyleAbnormal, LowNote: "Creatinine outside reference range", HighNote: "Creatinine outside reference range (kidney function)"},
			report.SexUnspecified: {Low: 0.6, High: 1.3, Unit: "mg/dL", Style: FlagStyleAbnormal, LowNote: "Creatinine outside reference range", HighNote: "Creatinine outside reference range (kidney function)"},
		},
		"HBsAg": {
			report.SexUnspecified: {Style: FlagStyleQualitative, HighNote: "Hepatitis B surface antigen detected"},
		},
		"VDRL": {
			report.SexUnspecified: {Style: FlagStyleQualitative, HighNote: "Reactive syphilis serology"},
		},
		"HCV": {
			report.SexUnspecified: {Style: FlagStyleQualitative, HighNote: "Hepatitis C antibody detected"},
		},
	}}
}

const (
	statusNormal      = "Normal"
	statusLow         = "Low"
	statusHigh        = "High"
	statusAbnormal    = "Abnormal"
	statusUnparseable = "unparseable"
	statusNoReference = "No reference range"
)

var firstNumberRe = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// lakhRe detects the Indian "lakhs" magnitude word on a platelet line so a
// value printed as "1.32 Lakhs" is scaled to an absolute count.
var lakhRe = regexp.MustCompile(`(?i)\blakhs?\b`)

func parseNumeric(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	m := firstNumberRe.FindString(cleaned)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var negativeTokens = []string{"non-reactive", "non reactive", "nonreactive", "not detected", "negative"}
var positiveTokens = []string{"reactive", "detected", "positive"}

// interpretQualitative normalizes a textual result.  Negative tokens are
// checked first because "non-reactive" contains "reactive".
func interpretQualitative(raw string, r RefRange) (status string, flag report.Flag, note string) {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range negativeTokens {
		if strings.Contains(lowered, t) {
			return "Negative", report.FlagNone, ""
		}
	}
	for _, t := range positiveTokens {
		if strings.Contains(lowered, t) {
			return "Positive", report.FlagPositive, r.HighNote
		}
	}
	return strings.TrimSpace(raw), report.FlagNone, ""
}

// InterpretEntry evaluates one parsed lab entry against the table.  Entries
// whose canonical name has no range still come back with a result row so
// nothing the parser found silently disappears.
func InterpretEntry(entry report.LabTestEntry, sex report.Sex, table *RangeTable) report.InterpretedResult {
	canonical := MapTestName(entry.RawName)
	res := report.InterpretedResult{
		TestName: canonical,
		Unit:     entry.Unit,
		Kind:     entry.Kind,
	}

	r, known := table.Lookup(canonical, sex)
	if entry.Kind == report.KindQualitative || (known && r.Style == FlagStyleQualitative) {
		res.Kind = report.KindQualitative
		status, flag, note := interpretQualitative(entry.RawValue, r)
		res.Status = status
		// Qualitative tests outside the table keep their normalized status
		// but carry no flag: there is no note to attach.
		if known && r.Style == FlagStyleQualitative {
			res.Flag = flag
			res.Note = note
		}
		return res
	}

	v, ok := parseNumeric(entry.RawValue)
	if !ok {
		res.Status = statusUnparseable
		return res
	}
	if canonical == "Platelet Count" && v < 10 && lakhRe.MatchString(entry.SourceLine) {
		v *= 100000
	}
	res.Value = v

	if !known {
		res.Status = statusNoReference
		return res
	}
	res.RefRange = r.Display()
	if r.Unit != "" && res.Unit == "" {
		res.Unit = r.Unit
	}

	switch {
	case v < r.Low:
		res.Status = statusLow
		res.Note = r.LowNote
		res.Flag = report.FlagLow
	case v > r.High:
		res.Status = statusHigh
		res.Note = r.HighNote
		res.Flag = report.FlagHigh
	default:
		res.Status = statusNormal
	}

	switch r.Style {
	case FlagStyleHighOnly:
		if res.Flag == report.FlagLow {
			res.Flag = report.FlagNone
			res.Status = statusNormal
			res.Note = ""
		}
	case FlagStyleAbnormal:
		if res.Flag != report.FlagNone {
			res.Flag = report.FlagAbnormal
			res.Status = statusAbnormal
		}
	}
	return res
}

// InterpretEntries evaluates every entry in parse order.
func InterpretEntries(entries []report.LabTestEntry, sex report.Sex, table *RangeTable) []report.InterpretedResult {
	results := make([]report.InterpretedResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, InterpretEntry(e, sex, table))
	}
	return results
}
