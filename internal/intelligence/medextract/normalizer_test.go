package medextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText_EmptyInput(t *testing.T) {
	_, err := NormalizeText("")
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestNormalizeText_WhitespaceOnly(t *testing.T) {
	_, err := NormalizeText("  \t \n\n  ")
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestNormalizeText_CollapsesInnerWhitespace(t *testing.T) {
	got, err := NormalizeText("Hemoglobin    12.5\t\tg/dL")
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin 12.5 g/dL", got)
}

func TestNormalizeText_PreservesLineBreaks(t *testing.T) {
	got, err := NormalizeText("line one\n\nline two")
	require.NoError(t, err)
	assert.Equal(t, "line one\n\nline two", got)
}

func TestNormalizeText_DropsControlRunes(t *testing.T) {
	got, err := NormalizeText("Hemo\x00globin 12")
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin 12", got)
}

func TestNormalizeText_AppliesNFC(t *testing.T) {
	// "e" + combining acute accent composes to a single rune.
	got, err := NormalizeText("José")
	require.NoError(t, err)
	assert.Equal(t, "José", got)
}

func TestNormalizeText_TrimsOuterWhitespace(t *testing.T) {
	got, err := NormalizeText("\n\n  report body  \n\n")
	require.NoError(t, err)
	assert.Equal(t, "report body", got)
}
