package textextract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
)

func TestPlainTextExtractor(t *testing.T) {
	e := NewPlainTextExtractor()

	assert.True(t, e.Supports("text/plain"))
	assert.True(t, e.Supports("text/plain; charset=utf-8"))
	assert.False(t, e.Supports("application/pdf"))

	doc, err := e.Extract(context.Background(), "report.txt", "text/plain", []byte("Patient Name: Jane"))
	require.NoError(t, err)
	assert.Equal(t, "Patient Name: Jane", doc.Text)
	assert.Equal(t, report.SourcePlainText, doc.Format)
}

func TestPlainTextExtractor_RejectsBinary(t *testing.T) {
	e := NewPlainTextExtractor()

	_, err := e.Extract(context.Background(), "report.txt", "text/plain", []byte{0xff, 0xfe, 0x00, 0x80})
	assert.Error(t, err)
}

func TestRouter_DispatchesByContentType(t *testing.T) {
	r := NewRouter(NewPlainTextExtractor())

	assert.True(t, r.Supports("text/plain"))
	assert.False(t, r.Supports("application/zip"))

	doc, err := r.Extract(context.Background(), "a.txt", "text/plain", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, report.SourcePlainText, doc.Format)

	_, err = r.Extract(context.Background(), "a.zip", "application/zip", []byte("x"))
	assert.Error(t, err)
}

func TestRemoteExtractor_Supports(t *testing.T) {
	e := NewRemoteExtractor("http://localhost", 0, logging.NewNopLogger())

	assert.True(t, e.Supports("application/pdf"))
	assert.True(t, e.Supports("image/png"))
	assert.True(t, e.Supports("image/jpeg"))
	assert.False(t, e.Supports("text/plain"))
}

func TestRemoteExtractor_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extract-text", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "scan.pdf", header.Filename)

		json.NewEncoder(w).Encode(remoteResponse{
			Success: true,
			Text:    "Patient Name: Jane Roe",
			Format:  "pdf-text",
		})
	}))
	defer srv.Close()

	e := NewRemoteExtractor(srv.URL, 5*time.Second, logging.NewNopLogger())
	doc, err := e.Extract(context.Background(), "scan.pdf", "application/pdf", []byte("%PDF-1.4"))

	require.NoError(t, err)
	assert.Equal(t, "Patient Name: Jane Roe", doc.Text)
	assert.Equal(t, report.SourcePDFText, doc.Format)
}

func TestRemoteExtractor_ServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteResponse{Success: false, Error: "unreadable scan"})
	}))
	defer srv.Close()

	e := NewRemoteExtractor(srv.URL, 5*time.Second, logging.NewNopLogger())
	_, err := e.Extract(context.Background(), "scan.png", "image/png", []byte{1, 2, 3})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable scan")
}

func TestRemoteExtractor_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewRemoteExtractor(srv.URL, 5*time.Second, logging.NewNopLogger())
	_, err := e.Extract(context.Background(), "scan.pdf", "application/pdf", []byte("x"))

	assert.Error(t, err)
}

func TestFormatFromResponse(t *testing.T) {
	assert.Equal(t, report.SourcePDFText, formatFromResponse("pdf-text", "image/png"))
	assert.Equal(t, report.SourceOCRText, formatFromResponse("ocr-text", "application/pdf"))
	assert.Equal(t, report.SourcePDFText, formatFromResponse("", "application/pdf"))
	assert.Equal(t, report.SourceOCRText, formatFromResponse("", "image/jpeg"))
}
