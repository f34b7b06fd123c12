package medextract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/medtext/reportiq/internal/domain/report"
)

const summaryHeader = "=== MEDICAL REPORT SUMMARY ==="

var bpValueRe = regexp.MustCompile(`^(\d{2,3})\s*/\s*(\d{2,3})$`)
var tempValueRe = regexp.MustCompile(`^(\d{2,3}(?:\.\d+)?)\s*([CF])$`)

// EvaluateVitals derives alert strings from the extracted blood pressure and
// temperature.  Missing vitals produce no alert; a vital that was extracted
// but cannot be re-parsed produces an explicit unparseable alert rather than
// being dropped.
func EvaluateVitals(rec report.PatientRecord) []string {
	var alerts []string

	if rec.BloodPressure != report.NotFound {
		m := bpValueRe.FindStringSubmatch(rec.BloodPressure)
		if m == nil {
			alerts = append(alerts, "Unable to parse blood pressure values")
		} else {
			sys, _ := strconv.Atoi(m[1])
			dia, _ := strconv.Atoi(m[2])
			switch {
			case sys > 140 || dia > 90:
				alerts = append(alerts, fmt.Sprintf("High Blood Pressure (%d/%d)", sys, dia))
			case sys < 90 || dia < 60:
				alerts = append(alerts, fmt.Sprintf("Low Blood Pressure (%d/%d)", sys, dia))
			}
		}
	}

	if rec.Temperature != report.NotFound {
		m := tempValueRe.FindStringSubmatch(rec.Temperature)
		if m == nil {
			alerts = append(alerts, "Unable to parse temperature value")
		} else {
			v, _ := strconv.ParseFloat(m[1], 64)
			switch m[2] {
			case "F":
				if v > 100.4 {
					alerts = append(alerts, fmt.Sprintf("Fever Detected (%s F)", m[1]))
				} else if v < 95 {
					alerts = append(alerts, fmt.Sprintf("Low Body Temperature (%s F)", m[1]))
				}
			case "C":
				if v > 38 {
					alerts = append(alerts, fmt.Sprintf("Fever Detected (%s C)", m[1]))
				} else if v < 35 {
					alerts = append(alerts, fmt.Sprintf("Low Body Temperature (%s C)", m[1]))
				}
			}
		}
	}

	return alerts
}

// BuildAlerts combines vital-sign alerts with one alert per flagged lab
// result, in result order.  Lab alerts read "<Test>: <Flag> — <Note>".
func BuildAlerts(rec report.PatientRecord, results []report.InterpretedResult) []string {
	alerts := EvaluateVitals(rec)
	for _, r := range results {
		if !r.Flagged() {
			continue
		}
		if r.Note != "" {
			alerts = append(alerts, fmt.Sprintf("%s: %s — %s", r.TestName, r.Flag, r.Note))
		} else {
			alerts = append(alerts, fmt.Sprintf("%s: %s", r.TestName, r.Flag))
		}
	}
	return alerts
}

func formatResultValue(r report.InterpretedResult) string {
	if r.Kind == report.KindQualitative {
		return r.Status
	}
	if r.Status == statusUnparseable {
		return statusUnparseable
	}
	v := strconv.FormatFloat(r.Value, 'f', -1, 64)
	if r.Unit != "" {
		v += " " + r.Unit
	}
	return v
}

// BuildSummary renders the full plain-text report.  The layout is fixed:
// header, patient fields in display order, alerts, structured results, and
// a recommendation block only when something was flagged.
func BuildSummary(rec report.PatientRecord, results []report.InterpretedResult, alerts []string) string {
	var b strings.Builder

	b.WriteString(summaryHeader + "\n\n")
	for _, f := range rec.Fields() {
		fmt.Fprintf(&b, "%s: %s\n", f.Label, f.Value)
	}

	b.WriteString("\n--- Alerts ---\n")
	if len(alerts) == 0 {
		b.WriteString("No alerts.\n")
	} else {
		for _, a := range alerts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	b.WriteString("\n--- Structured Results ---\n")
	if len(results) == 0 {
		b.WriteString("No lab values detected.\n")
	} else {
		for _, r := range results {
			line := fmt.Sprintf("%s: %s", r.TestName, formatResultValue(r))
			if r.Status != "" && r.Kind == report.KindNumeric && r.Status != statusUnparseable {
				line += fmt.Sprintf(" [%s]", r.Status)
			}
			if r.RefRange != "" {
				line += fmt.Sprintf(" (ref %s)", r.RefRange)
			}
			b.WriteString(line + "\n")
		}
	}

	flagged := false
	for _, r := range results {
		if r.Flagged() {
			flagged = true
			break
		}
	}
	if flagged || len(alerts) > 0 {
		b.WriteString("\nRecommendation: One or more findings are outside the reference range.\n")
		b.WriteString("Please review the flagged values with a qualified clinician.\n")
	}

	return b.String()
}
