package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─────────────────────────────────────────────────────────────────────────────
// Service mock
// ─────────────────────────────────────────────────────────────────────────────

type mockService struct {
	analyzeUploadFn func(ctx context.Context, filename, contentType string, data []byte) (*report.Analysis, error)
	analyzeTextFn   func(ctx context.Context, text string) (*report.Analysis, error)
	enqueueUploadFn func(ctx context.Context, filename, contentType string, data []byte) (string, error)
	getAnalysisFn   func(ctx context.Context, id string) (*report.Analysis, error)
	getSummaryFn    func(ctx context.Context, id string) (string, error)
	summaryURLFn    func(ctx context.Context, id string) (string, error)
	listAnalysesFn  func(ctx context.Context, limit, offset int) ([]*report.Analysis, error)
	deleteFn        func(ctx context.Context, id string) error
}

func (m *mockService) AnalyzeUpload(ctx context.Context, filename, contentType string, data []byte) (*report.Analysis, error) {
	return m.analyzeUploadFn(ctx, filename, contentType, data)
}

func (m *mockService) AnalyzeText(ctx context.Context, text string) (*report.Analysis, error) {
	return m.analyzeTextFn(ctx, text)
}

func (m *mockService) EnqueueUpload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	return m.enqueueUploadFn(ctx, filename, contentType, data)
}

func (m *mockService) GetAnalysis(ctx context.Context, id string) (*report.Analysis, error) {
	return m.getAnalysisFn(ctx, id)
}

func (m *mockService) GetSummary(ctx context.Context, id string) (string, error) {
	return m.getSummaryFn(ctx, id)
}

func (m *mockService) SummaryURL(ctx context.Context, id string) (string, error) {
	return m.summaryURLFn(ctx, id)
}

func (m *mockService) ListAnalyses(ctx context.Context, limit, offset int) ([]*report.Analysis, error) {
	return m.listAnalysesFn(ctx, limit, offset)
}

func (m *mockService) DeleteAnalysis(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func newTestRouter(svc *mockService) *gin.Engine {
	h := NewReportHandler(svc, 1<<20, nil)

	r := gin.New()
	r.POST("/api/v1/reports", h.Upload)
	r.POST("/api/v1/reports/text", h.AnalyzeText)
	r.GET("/api/v1/reports", h.List)
	r.GET("/api/v1/reports/:id", h.Get)
	r.GET("/api/v1/reports/:id/summary", h.Summary)
	r.DELETE("/api/v1/reports/:id", h.Delete)
	return r
}

func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeError(t *testing.T, body *bytes.Buffer) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &resp))
	return resp
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestUpload_Sync(t *testing.T) {
	var gotFilename, gotContentType string
	var gotData []byte
	svc := &mockService{
		analyzeUploadFn: func(_ context.Context, filename, contentType string, data []byte) (*report.Analysis, error) {
			gotFilename, gotContentType, gotData = filename, contentType, data
			return &report.Analysis{ID: "a-1", Summary: "all clear"}, nil
		},
	}

	body, formType := multipartBody(t, "report.txt", "text/plain", []byte("Hb 14.0 Grams%"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", body)
	req.Header.Set("Content-Type", formType)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "report.txt", gotFilename)
	assert.Equal(t, "text/plain", gotContentType)
	assert.Equal(t, []byte("Hb 14.0 Grams%"), gotData)

	var got report.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a-1", got.ID)
}

func TestUpload_Async(t *testing.T) {
	svc := &mockService{
		enqueueUploadFn: func(_ context.Context, filename, _ string, _ []byte) (string, error) {
			assert.Equal(t, "report.txt", filename)
			return "queued-id", nil
		},
	}

	body, formType := multipartBody(t, "report.txt", "text/plain", []byte("text"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports?async=true", body)
	req.Header.Set("Content-Type", formType)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp enqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "queued-id", resp.AnalysisID)
	assert.Equal(t, "queued", resp.Status)
}

func TestUpload_MissingFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	rec := httptest.NewRecorder()
	newTestRouter(&mockService{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(errors.ErrCodeBadRequest), decodeError(t, rec.Body).Code)
}

func TestAnalyzeText(t *testing.T) {
	svc := &mockService{
		analyzeTextFn: func(_ context.Context, text string) (*report.Analysis, error) {
			assert.Equal(t, "Hb 14.0 Grams%", text)
			return &report.Analysis{ID: "a-2"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/text",
		strings.NewReader(`{"text":"Hb 14.0 Grams%"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got report.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "a-2", got.ID)
}

func TestAnalyzeText_MissingText(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/text", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(&mockService{}).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(errors.ErrCodeBadRequest), decodeError(t, rec.Body).Code)
}

func TestGet_NotFound(t *testing.T) {
	svc := &mockService{
		getAnalysisFn: func(_ context.Context, id string) (*report.Analysis, error) {
			return nil, errors.New(errors.ErrCodeReportNotFound, "analysis "+id+" not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/missing", nil)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(errors.ErrCodeReportNotFound), decodeError(t, rec.Body).Code)
}

func TestGet_ServerErrorMasked(t *testing.T) {
	svc := &mockService{
		getAnalysisFn: func(_ context.Context, _ string) (*report.Analysis, error) {
			return nil, errors.New(errors.ErrCodeDatabaseError, "dsn=postgres://admin:hunter2@db/prod")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/a-1", nil)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec.Body)
	assert.NotContains(t, resp.Message, "hunter2")
}

func TestList_Pagination(t *testing.T) {
	var gotLimit, gotOffset int
	svc := &mockService{
		listAnalysesFn: func(_ context.Context, limit, offset int) ([]*report.Analysis, error) {
			gotLimit, gotOffset = limit, offset
			return []*report.Analysis{{ID: "a-1"}, {ID: "a-2"}}, nil
		},
	}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=5&offset=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, 10, gotOffset)

	// Out-of-range values fall back to defaults.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=500&offset=-3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, gotLimit)
	assert.Equal(t, 0, gotOffset)

	var resp struct {
		Items  []*report.Analysis `json:"items"`
		Limit  int                `json:"limit"`
		Offset int                `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
}

func TestSummary_Text(t *testing.T) {
	svc := &mockService{
		getSummaryFn: func(_ context.Context, id string) (string, error) {
			assert.Equal(t, "a-1", id)
			return "Medical Report Summary", nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/a-1/summary", nil)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Medical Report Summary", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestSummary_PresignedURL(t *testing.T) {
	svc := &mockService{
		summaryURLFn: func(_ context.Context, id string) (string, error) {
			return "https://minio.local/reportiq-reports/summaries/" + id + ".txt?sig=abc", nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/a-1/summary?format=url", nil)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["url"], "summaries/a-1.txt")
}

func TestDelete(t *testing.T) {
	var deleted string
	svc := &mockService{
		deleteFn: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/reports/a-1", nil)
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "a-1", deleted)
}

func TestHealth_Readiness(t *testing.T) {
	failing := Pinger{Name: "redis", Ping: func(context.Context) error {
		return errors.New(errors.ErrCodeCacheError, "connection refused")
	}}
	healthy := Pinger{Name: "postgres", Ping: func(context.Context) error { return nil }}

	h := NewHealthHandler([]Pinger{healthy, failing}, nil, nil)
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["postgres"])
	assert.Contains(t, resp.Checks["redis"], "connection refused")
}
