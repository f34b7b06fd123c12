package medextract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medtext/reportiq/internal/domain/report"
)

func TestExtractVitals_BloodPressureLabel(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("Blood Pressure: 150/95 mmHg", &rec)
	assert.Equal(t, "150/95", rec.BloodPressure)
}

func TestExtractVitals_BPAbbreviation(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("B.P. 120 / 80", &rec)
	assert.Equal(t, "120/80", rec.BloodPressure)
}

func TestExtractVitals_TemperatureFahrenheit(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("Temperature: 101.2 F", &rec)
	assert.Equal(t, "101.2 F", rec.Temperature)
}

func TestExtractVitals_TemperatureCelsiusWithDegree(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("Temp: 38.5°C", &rec)
	assert.Equal(t, "38.5 C", rec.Temperature)
}

func TestExtractVitals_LowercaseUnitUppercased(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("temp 99.1 f", &rec)
	assert.Equal(t, "99.1 F", rec.Temperature)
}

func TestExtractVitals_NothingFound(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("no vitals recorded today", &rec)
	assert.Equal(t, report.NotFound, rec.BloodPressure)
	assert.Equal(t, report.NotFound, rec.Temperature)
}

func TestExtractVitals_LabelValueOnSeparateLinesNotMatched(t *testing.T) {
	rec := report.NewPatientRecord()
	ExtractVitals("Blood Pressure:\n120/80", &rec)
	assert.Equal(t, report.NotFound, rec.BloodPressure)
}
