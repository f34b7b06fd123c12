package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medtext/reportiq/internal/application/analysis"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/pkg/errors"
)

// ReportHandler serves the report analysis API.
type ReportHandler struct {
	svc         analysis.Service
	maxBodySize int64
	logger      logging.Logger
}

// NewReportHandler builds the handler. maxBodySize caps uploaded documents
// in bytes.
func NewReportHandler(svc analysis.Service, maxBodySize int64, logger logging.Logger) *ReportHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if maxBodySize <= 0 {
		maxBodySize = 16 << 20
	}
	return &ReportHandler{svc: svc, maxBodySize: maxBodySize, logger: logger.Named("report-handler")}
}

type analyzeTextRequest struct {
	Text string `json:"text" binding:"required"`
}

type enqueueResponse struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

// Upload accepts a multipart document and analyzes it. With ?async=true the
// document is queued for the worker and a 202 with the analysis ID is
// returned instead of the finished analysis.
func (h *ReportHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			respondError(c, errors.New(errors.ErrCodeReportTooLarge, "uploaded document exceeds the size limit"))
			return
		}
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "multipart form field 'file' is required"))
		return
	}
	if fileHeader.Size > h.maxBodySize {
		respondError(c, errors.New(errors.ErrCodeReportTooLarge, "uploaded document exceeds the size limit"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to open uploaded file"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "failed to read uploaded file"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")

	if c.Query("async") == "true" {
		id, err := h.svc.EnqueueUpload(c.Request.Context(), fileHeader.Filename, contentType, data)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, enqueueResponse{AnalysisID: id, Status: "queued"})
		return
	}

	result, err := h.svc.AnalyzeUpload(c.Request.Context(), fileHeader.Filename, contentType, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeText analyzes report text submitted as JSON.
func (h *ReportHandler) AnalyzeText(c *gin.Context) {
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "request body must be JSON with a non-empty 'text' field"))
		return
	}
	if int64(len(req.Text)) > h.maxBodySize {
		respondError(c, errors.New(errors.ErrCodeReportTooLarge, "submitted text exceeds the size limit"))
		return
	}

	result, err := h.svc.AnalyzeText(c.Request.Context(), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Get returns one stored analysis.
func (h *ReportHandler) Get(c *gin.Context) {
	result, err := h.svc.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// List returns stored analyses newest-first with limit/offset pagination.
func (h *ReportHandler) List(c *gin.Context) {
	limit, offset := parsePagination(c)

	items, err := h.svc.ListAnalyses(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// Summary returns the plain-text interpretation summary. With ?format=url a
// presigned link to the stored summary object is returned instead.
func (h *ReportHandler) Summary(c *gin.Context) {
	id := c.Param("id")

	if c.Query("format") == "url" {
		url, err := h.svc.SummaryURL(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
		return
	}

	summary, err := h.svc.GetSummary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.String(http.StatusOK, summary)
}

// Delete removes an analysis with its cache entry and stored objects.
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteAnalysis(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
