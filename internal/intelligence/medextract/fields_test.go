package medextract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medtext/reportiq/internal/domain/report"
)

func TestExtractBasicFields_LabelledPatientName(t *testing.T) {
	rec := ExtractBasicFields("Patient Name: John Doe\nAge: 45")
	assert.Equal(t, "John Doe", rec.Name)
}

func TestExtractBasicFields_NameFallbackLabel(t *testing.T) {
	rec := ExtractBasicFields("Name - Mary Smith")
	assert.Equal(t, "Mary Smith", rec.Name)
}

func TestExtractBasicFields_NameStripsTrailingAge(t *testing.T) {
	rec := ExtractBasicFields("Patient Name: John Doe Age : 45")
	assert.Equal(t, "John Doe", rec.Name)
	assert.Equal(t, "45", rec.Age)
}

func TestExtractBasicFields_RawColumnGapCutsName(t *testing.T) {
	// Tabular sheets that bypass NormalizeText keep their column gaps; the
	// name must stop at the gap instead of swallowing the next column.
	rec := ExtractBasicFields("Patient Name : John Doe     Ref. By : Dr. A Kumar")
	assert.Equal(t, "John Doe", rec.Name)
}

func TestExtractBasicFields_LabelledAge(t *testing.T) {
	rec := ExtractBasicFields("Age: 45")
	assert.Equal(t, "45", rec.Age)
}

func TestExtractBasicFields_AgeWithUnit(t *testing.T) {
	rec := ExtractBasicFields("Patient is 45 years old")
	assert.Equal(t, "45", rec.Age)
}

func TestExtractBasicFields_SexLabel(t *testing.T) {
	rec := ExtractBasicFields("Sex: F")
	assert.Equal(t, "F", rec.Sex)
}

func TestExtractBasicFields_GenderFallback(t *testing.T) {
	rec := ExtractBasicFields("Gender: Male")
	assert.Equal(t, "Male", rec.Sex)
}

func TestExtractBasicFields_DateISOPreferred(t *testing.T) {
	rec := ExtractBasicFields("Date: 2024-03-15")
	assert.Equal(t, "2024-03-15", rec.ReportDate)
}

func TestExtractBasicFields_DateDMY(t *testing.T) {
	rec := ExtractBasicFields("Report Date: 15/03/2024")
	assert.Equal(t, "15/03/2024", rec.ReportDate)
}

func TestExtractBasicFields_NothingFound(t *testing.T) {
	rec := ExtractBasicFields("routine follow-up visit, no complaints")
	assert.Equal(t, report.NotFound, rec.Name)
	assert.Equal(t, report.NotFound, rec.Age)
	assert.Equal(t, report.NotFound, rec.Sex)
	assert.Equal(t, report.NotFound, rec.ReportDate)
}
