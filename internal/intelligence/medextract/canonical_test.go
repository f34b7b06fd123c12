package medextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapTestName_Table(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"Hemoglobin", "Hemoglobin"},
		{"Haemoglobin (Hb)", "Hemoglobin"},
		{"Heamoglobin", "Hemoglobin"},
		{"HGB", "Hemoglobin"},
		{"Hb", "Hemoglobin"},
		{"Platelet Count", "Platelet Count"},
		{"PLT", "Platelet Count"},
		{"WBC Count", "WBC Count"},
		{"Total Leucocyte Count", "WBC Count"},
		{"Leukocyte count", "WBC Count"},
		{"TLC", "WBC Count"},
		{"RBC", "RBC Count"},
		{"Erythrocyte count", "RBC Count"},
		{"Red Blood Cell Count", "RBC Count"},
		{"ESR (Westergren)", "ESR"},
		{"Sed Rate", "ESR"},
		{"Fasting Glucose", "Glucose (Fasting)"},
		{"Glucose - Fasting", "Glucose (Fasting)"},
		{"FBS", "Glucose (Fasting)"},
		{"Blood Sugar (Random)", "Glucose"},
		{"RBS", "Glucose"},
		{"Serum Creatinine", "Creatinine"},
		{"HBsAg 1", "HBsAg"},
		{"Australia Antigen", "HBsAg"},
		{"VDRL", "VDRL"},
		{"RPR Test", "VDRL"},
		{"Anti HCV", "HCV"},
		{"HCV Tri-Dot", "HCV"},
		{"Peripheral Smear", "Blood Picture"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapTestName(tc.raw), "raw=%q", tc.raw)
	}
}

func TestMapTestName_HbsAgWinsOverHb(t *testing.T) {
	// "hbsag" contains "hb"; rule order keeps it a serology test.
	assert.Equal(t, "HBsAg", MapTestName("HBsAg"))
}

func TestMapTestName_HbMatchesWholeWordOnly(t *testing.T) {
	assert.Equal(t, "Hemoglobin", MapTestName("Hb"))
	assert.Equal(t, "Hemoglobin", MapTestName("Hb (EDTA)"))
	// "HbA1c" embeds "hb" but is a different analyte; it passes through.
	assert.Equal(t, "HbA1c", MapTestName("HbA1c"))
}

func TestMapTestName_UnknownPassesThroughVerbatim(t *testing.T) {
	assert.Equal(t, "Uric Acid", MapTestName("Uric Acid"))
	assert.Equal(t, "Serum Bilirubin (Total)", MapTestName("  Serum Bilirubin (Total)  "))
}

func TestMapTestName_CaseInsensitive(t *testing.T) {
	assert.Equal(t, "Hemoglobin", MapTestName("hEmOgLoBiN"))
}
