package textextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/pkg/errors"
)

// remoteResponse is the extraction service's reply.
type remoteResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Format  string `json:"format"`
	Error   string `json:"error,omitempty"`
}

// RemoteExtractor sends PDFs and scanned images to the document extraction
// service and returns the recovered text.
type RemoteExtractor struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// NewRemoteExtractor builds an extractor against the given service URL.
func NewRemoteExtractor(baseURL string, timeout time.Duration, log logging.Logger) *RemoteExtractor {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RemoteExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  log.Named("textextract"),
	}
}

func (e *RemoteExtractor) Supports(contentType string) bool {
	base := baseContentType(contentType)
	if base == "application/pdf" {
		return true
	}
	switch base {
	case "image/png", "image/jpeg", "image/tiff":
		return true
	}
	return false
}

func (e *RemoteExtractor) Extract(ctx context.Context, filename, contentType string, data []byte) (*report.RawDocument, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build multipart form")
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to copy document data")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to finalize multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/extract-text", body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build extraction request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTextExtractionFailed, "extraction service unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTextExtractionFailed, "failed to read extraction response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodeTextExtractionFailed,
			fmt.Sprintf("extraction service returned status %d", resp.StatusCode))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTextExtractionFailed, "malformed extraction response")
	}
	if !parsed.Success {
		return nil, errors.New(errors.ErrCodeTextExtractionFailed, parsed.Error)
	}

	e.logger.Debug("Text extracted",
		logging.String("filename", filename),
		logging.Int("chars", len(parsed.Text)),
		logging.Duration("elapsed", time.Since(start)))

	return &report.RawDocument{
		Text:   parsed.Text,
		Format: formatFromResponse(parsed.Format, contentType),
	}, nil
}

// formatFromResponse trusts the service's format tag when present, otherwise
// infers it from the uploaded content type.
func formatFromResponse(format, contentType string) report.SourceFormat {
	switch format {
	case string(report.SourcePDFText):
		return report.SourcePDFText
	case string(report.SourceOCRText):
		return report.SourceOCRText
	}
	if baseContentType(contentType) == "application/pdf" {
		return report.SourcePDFText
	}
	return report.SourceOCRText
}
