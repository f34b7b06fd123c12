// Package report defines the domain model shared by the extraction pipeline,
// the application services, and the persistence layer: the patient record,
// lab test detections, interpreted results, and the stored analysis entity.
package report

import (
	"strings"
	"time"
)

// NotFound is the absence sentinel: a field was searched for and is missing.
// It is distinct from the empty string, which never appears as a field value.
const NotFound = "Not found"

// SourceFormat tags how the raw report text was obtained.
type SourceFormat string

const (
	SourcePDFText   SourceFormat = "pdf-text"
	SourceOCRText   SourceFormat = "ocr-text"
	SourcePlainText SourceFormat = "plain-text"
)

// Sex is the reference-range lookup category resolved from the report.
type Sex string

const (
	SexMale        Sex = "Male"
	SexFemale      Sex = "Female"
	SexUnspecified Sex = "Unspecified"
)

// ResolveSex maps a raw extracted sex value (or the absence sentinel) to a
// range-lookup category.  Anything unrecognised resolves to Unspecified.
func ResolveSex(raw string) Sex {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return SexMale
	case "female", "f":
		return SexFemale
	default:
		return SexUnspecified
	}
}

// Flag classifies an interpreted value against its reference range.
type Flag string

const (
	FlagLow      Flag = "Low"
	FlagHigh     Flag = "High"
	FlagAbnormal Flag = "Abnormal"
	FlagPositive Flag = "Positive"
	FlagNegative Flag = "Negative"
	FlagNone     Flag = ""
)

// RawDocument is one uploaded report: the extracted text plus its source tag.
// It is created once per upload and never mutated.
type RawDocument struct {
	Text   string       `json:"text"`
	Format SourceFormat `json:"format"`
}

// PatientRecord holds the patient-level fields extracted from a report.
// Every field is always populated, either with an extracted value or with
// the NotFound sentinel; no field is ever omitted.
type PatientRecord struct {
	Name          string `json:"name"`
	Age           string `json:"age"`
	Sex           string `json:"sex"`
	ReportDate    string `json:"report_date"`
	BloodPressure string `json:"blood_pressure"`
	Temperature   string `json:"temperature"`
	Diagnosis     string `json:"diagnosis"`
	Medications   string `json:"medications"`
}

// NewPatientRecord returns a record with every field set to the absence
// sentinel, ready for the extractors to fill in.
func NewPatientRecord() PatientRecord {
	return PatientRecord{
		Name:          NotFound,
		Age:           NotFound,
		Sex:           NotFound,
		ReportDate:    NotFound,
		BloodPressure: NotFound,
		Temperature:   NotFound,
		Diagnosis:     NotFound,
		Medications:   NotFound,
	}
}

// FieldEntry is one display-ordered (label, value) pair of a PatientRecord.
type FieldEntry struct {
	Label string
	Value string
}

// Fields returns the record's fields in presentation order.  The order is
// stable so summary output is byte-identical across runs.
func (p PatientRecord) Fields() []FieldEntry {
	return []FieldEntry{
		{"Name", p.Name},
		{"Age", p.Age},
		{"Sex", p.Sex},
		{"Report Date", p.ReportDate},
		{"Blood Pressure", p.BloodPressure},
		{"Temperature", p.Temperature},
		{"Diagnosis", p.Diagnosis},
		{"Medications", p.Medications},
	}
}

// ValueKind distinguishes qualitative from numeric lab detections.
type ValueKind string

const (
	KindQualitative ValueKind = "qualitative"
	KindNumeric     ValueKind = "numeric"
)

// LabTestEntry is one line-level lab detection.  Entries are ephemeral:
// produced by the line parser and consumed immediately by canonicalization
// and interpretation.  SourceLine retains the original text for diagnostics
// and for interpretation heuristics that inspect the whole line.
type LabTestEntry struct {
	RawName    string    `json:"raw_name"`
	RawValue   string    `json:"raw_value"`
	Unit       string    `json:"unit,omitempty"`
	Kind       ValueKind `json:"kind"`
	SourceLine string    `json:"source_line"`
}

// InterpretedResult is one lab value after canonicalization and reference
// range comparison.  Flag is FlagNone unless the value resolved successfully
// and fell outside the applicable range (or matched a positive qualitative
// pattern).
type InterpretedResult struct {
	TestName string    `json:"test_name"`
	Value    float64   `json:"value,omitempty"`
	Status   string    `json:"status,omitempty"`
	Unit     string    `json:"unit,omitempty"`
	Kind     ValueKind `json:"kind"`
	Flag     Flag      `json:"flag,omitempty"`
	Note     string    `json:"note,omitempty"`
	RefRange string    `json:"ref_range,omitempty"`
}

// Flagged reports whether the result carries an abnormality flag.
func (r InterpretedResult) Flagged() bool {
	return r.Flag != FlagNone
}

// Analysis is the stored outcome of one pipeline run over one document.
// Immutable once derived.
type Analysis struct {
	ID           string              `json:"id"`
	DocumentHash string              `json:"document_hash"`
	Format       SourceFormat        `json:"format"`
	Record       PatientRecord       `json:"record"`
	Results      []InterpretedResult `json:"results"`
	Alerts       []string            `json:"alerts"`
	Summary      string              `json:"summary"`
	RawText      string              `json:"raw_text,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// HasFlags reports whether any interpreted result carries a flag.
func (a *Analysis) HasFlags() bool {
	for _, r := range a.Results {
		if r.Flagged() {
			return true
		}
	}
	return false
}
