package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtext/reportiq/internal/config"
	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/interfaces/http/handlers"
	"github.com/medtext/reportiq/internal/interfaces/http/middleware"
)

type stubService struct{}

func (stubService) AnalyzeUpload(context.Context, string, string, []byte) (*report.Analysis, error) {
	return &report.Analysis{ID: "a-1"}, nil
}
func (stubService) AnalyzeText(context.Context, string) (*report.Analysis, error) {
	return &report.Analysis{ID: "a-1"}, nil
}
func (stubService) EnqueueUpload(context.Context, string, string, []byte) (string, error) {
	return "a-1", nil
}
func (stubService) GetAnalysis(_ context.Context, id string) (*report.Analysis, error) {
	return &report.Analysis{ID: id}, nil
}
func (stubService) GetSummary(context.Context, string) (string, error)  { return "summary", nil }
func (stubService) SummaryURL(context.Context, string) (string, error)  { return "https://x", nil }
func (stubService) DeleteAnalysis(context.Context, string) error        { return nil }
func (stubService) ListAnalyses(context.Context, int, int) ([]*report.Analysis, error) {
	return nil, nil
}

func newTestEngine() *gin.Engine {
	return NewRouter(RouterConfig{
		ServerConfig:  config.ServerConfig{Mode: "test"},
		ReportHandler: handlers.NewReportHandler(stubService{}, 1<<20, nil),
		HealthHandler: handlers.NewHealthHandler(nil, nil, nil),
		CORS:          middleware.DefaultCORSConfig(),
	})
}

func TestRouter_RoutesMounted(t *testing.T) {
	r := newTestEngine()

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/api/v1/reports", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/a-1", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/a-1/summary", http.StatusOK},
		{http.MethodDelete, "/api/v1/reports/a-1", http.StatusNoContent},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouter_RequestIDOnEveryResponse(t *testing.T) {
	r := newTestEngine()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
