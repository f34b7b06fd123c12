package medextract

import (
	"regexp"
	"strings"

	"github.com/medtext/reportiq/internal/domain/report"
)

// The "[^\d\n]{0,10}" gap tolerates punctuation, units, and colons between
// the label and the reading without matching across lines.
var (
	bpRe = regexp.MustCompile(`(?i)(?:blood\s*pressure|\bb\.?\s?p\.?)[^\d\n]{0,10}(\d{2,3})\s*/\s*(\d{2,3})`)

	tempRe = regexp.MustCompile(`(?i)\btemp(?:erature)?[^\d\n]{0,10}(\d{2,3}(?:\.\d+)?)\s*°?\s*([CF])\b`)
)

// ExtractVitals fills Blood Pressure and Temperature on the given record.
// Blood pressure is stored as the raw "systolic/diastolic" string and
// temperature as "<value> <UNIT>"; either keeps the absence sentinel when
// no reading is found.
func ExtractVitals(text string, rec *report.PatientRecord) {
	if m := bpRe.FindStringSubmatch(text); m != nil {
		rec.BloodPressure = m[1] + "/" + m[2]
	}
	if m := tempRe.FindStringSubmatch(text); m != nil {
		rec.Temperature = m[1] + " " + strings.ToUpper(m[2])
	}
}
