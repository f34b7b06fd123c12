// Package analysis is the application layer: it accepts report uploads,
// runs the extraction pipeline, persists and caches the results, and
// publishes report events.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/infrastructure/database/redis"
	"github.com/medtext/reportiq/internal/infrastructure/messaging/kafka"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/storage/minio"
	"github.com/medtext/reportiq/internal/infrastructure/textextract"
	"github.com/medtext/reportiq/internal/intelligence/medextract"
	"github.com/medtext/reportiq/pkg/errors"
)

const (
	cacheKeyPrefix = "analysis:"
	cacheTTL       = 24 * time.Hour
)

// EventPublisher publishes report lifecycle events. Satisfied by
// *kafka.Producer; nil disables event publication.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType, analysisID string, payload interface{}) error
}

// Service is the report analysis application API.
type Service interface {
	// AnalyzeUpload extracts text from an uploaded file and analyzes it
	// synchronously. A document already analyzed (same SHA-256) returns the
	// stored analysis without rerunning the pipeline.
	AnalyzeUpload(ctx context.Context, filename, contentType string, data []byte) (*report.Analysis, error)

	// AnalyzeText analyzes raw report text submitted directly.
	AnalyzeText(ctx context.Context, text string) (*report.Analysis, error)

	// EnqueueUpload stores the document and hands it to the worker via the
	// event bus. Returns the analysis ID the worker will use.
	EnqueueUpload(ctx context.Context, filename, contentType string, data []byte) (string, error)

	// GetAnalysis loads one analysis, cache-first.
	GetAnalysis(ctx context.Context, id string) (*report.Analysis, error)

	// GetSummary returns the rendered text summary of an analysis.
	GetSummary(ctx context.Context, id string) (string, error)

	// SummaryURL returns a presigned link to the stored summary object.
	SummaryURL(ctx context.Context, id string) (string, error)

	// ListAnalyses returns stored analyses newest-first.
	ListAnalyses(ctx context.Context, limit, offset int) ([]*report.Analysis, error)

	// DeleteAnalysis removes the analysis, its cache entry, and its objects.
	DeleteAnalysis(ctx context.Context, id string) error
}

type service struct {
	repo      report.Repository
	pipeline  medextract.Pipeline
	extractor textextract.TextExtractor
	cache     redis.Cache
	store     minio.ReportStore
	publisher EventPublisher
	logger    logging.Logger
}

// NewService wires the application service. Repository, pipeline, and
// extractor are required; cache, store, and publisher may be nil and the
// corresponding behavior is skipped.
func NewService(
	repo report.Repository,
	pipeline medextract.Pipeline,
	extractor textextract.TextExtractor,
	cache redis.Cache,
	store minio.ReportStore,
	publisher EventPublisher,
	logger logging.Logger,
) (Service, error) {
	if repo == nil {
		return nil, errors.New(errors.CodeInvalidParam, "repository is required")
	}
	if pipeline == nil {
		return nil, errors.New(errors.CodeInvalidParam, "pipeline is required")
	}
	if extractor == nil {
		return nil, errors.New(errors.CodeInvalidParam, "text extractor is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &service{
		repo:      repo,
		pipeline:  pipeline,
		extractor: extractor,
		cache:     cache,
		store:     store,
		publisher: publisher,
		logger:    logger.Named("analysis"),
	}, nil
}

func (s *service) AnalyzeUpload(ctx context.Context, filename, contentType string, data []byte) (*report.Analysis, error) {
	doc, err := s.extractor.Extract(ctx, filename, contentType, data)
	if err != nil {
		return nil, err
	}
	return s.analyzeDocument(ctx, "", *doc, data, contentType)
}

func (s *service) AnalyzeText(ctx context.Context, text string) (*report.Analysis, error) {
	doc := report.RawDocument{Text: text, Format: report.SourcePlainText}
	return s.analyzeDocument(ctx, "", doc, []byte(text), "text/plain; charset=utf-8")
}

// analyzeDocument is the shared path: dedupe, analyze, persist, store
// objects, publish events, warm the cache. An empty id means a fresh one is
// assigned; the worker passes the id minted at enqueue time.
func (s *service) analyzeDocument(ctx context.Context, id string, doc report.RawDocument, raw []byte, contentType string) (*report.Analysis, error) {
	hash := documentHash(doc.Text)

	if existing, err := s.repo.FindByDocumentHash(ctx, hash); err == nil {
		s.logger.Debug("Document already analyzed",
			logging.String("analysis_id", existing.ID),
			logging.String("document_hash", hash))
		return existing, nil
	}

	result, err := s.pipeline.Analyze(ctx, doc)
	if err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.New().String()
	}
	a := &report.Analysis{
		ID:           id,
		DocumentHash: hash,
		Format:       doc.Format,
		Record:       result.Record,
		Results:      result.Results,
		Alerts:       result.Alerts,
		Summary:      result.Summary,
		RawText:      result.NormalizedText,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}

	s.storeObjects(ctx, a, raw, contentType)
	s.cacheAnalysis(ctx, a)
	s.publishOutcome(ctx, a)

	s.logger.Info("Report analyzed",
		logging.String("analysis_id", a.ID),
		logging.Int("results", len(a.Results)),
		logging.Int("alerts", len(a.Alerts)))
	return a, nil
}

func (s *service) EnqueueUpload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if s.store == nil || s.publisher == nil {
		return "", errors.New(errors.ErrCodeServiceUnavailable, "asynchronous analysis is not configured")
	}
	if !s.extractor.Supports(contentType) {
		return "", errors.New(errors.ErrCodeUnsupportedMedia, "no extractor for content type "+contentType)
	}

	id := uuid.New().String()
	objectKey, err := s.store.StoreRaw(ctx, id, data, contentType)
	if err != nil {
		return "", err
	}

	err = s.publisher.PublishEvent(ctx, kafka.TopicReportReceived, "report.received", id,
		kafka.ReportReceivedPayload{
			AnalysisID:   id,
			DocumentHash: documentHash(string(data)),
			Format:       contentType,
			ObjectKey:    objectKey,
			ReceivedAt:   time.Now().UTC(),
		})
	if err != nil {
		return "", err
	}

	s.logger.Info("Report enqueued",
		logging.String("analysis_id", id),
		logging.String("filename", filename))
	return id, nil
}

func (s *service) GetAnalysis(ctx context.Context, id string) (*report.Analysis, error) {
	if id == "" {
		return nil, errors.New(errors.CodeInvalidParam, "analysis id required")
	}
	if s.cache == nil {
		return s.repo.FindByID(ctx, id)
	}

	var a report.Analysis
	err := s.cache.GetOrSet(ctx, cacheKeyPrefix+id, &a, cacheTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.repo.FindByID(ctx, id)
		})
	if err != nil {
		if err == redis.ErrCacheMiss {
			return nil, errors.New(errors.ErrCodeReportNotFound, "report analysis not found")
		}
		return nil, err
	}
	return &a, nil
}

func (s *service) GetSummary(ctx context.Context, id string) (string, error) {
	a, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return "", err
	}
	return a.Summary, nil
}

func (s *service) SummaryURL(ctx context.Context, id string) (string, error) {
	if s.store == nil {
		return "", errors.New(errors.ErrCodeServiceUnavailable, "object storage is not configured")
	}
	// Verify the analysis exists before handing out a link.
	if _, err := s.GetAnalysis(ctx, id); err != nil {
		return "", err
	}
	return s.store.SummaryURL(ctx, id)
}

func (s *service) ListAnalyses(ctx context.Context, limit, offset int) ([]*report.Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *service) DeleteAnalysis(ctx context.Context, id string) error {
	if id == "" {
		return errors.New(errors.CodeInvalidParam, "analysis id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKeyPrefix+id); err != nil {
			s.logger.Warn("Failed to evict cache entry",
				logging.String("analysis_id", id), logging.Err(err))
		}
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("Failed to delete stored objects",
				logging.String("analysis_id", id), logging.Err(err))
		}
	}
	return nil
}

// storeObjects persists the raw document and summary. Failures are logged,
// not fatal: the analysis row is the source of truth.
func (s *service) storeObjects(ctx context.Context, a *report.Analysis, raw []byte, contentType string) {
	if s.store == nil {
		return
	}
	if _, err := s.store.StoreRaw(ctx, a.ID, raw, contentType); err != nil {
		s.logger.Warn("Failed to store raw document",
			logging.String("analysis_id", a.ID), logging.Err(err))
	}
	if _, err := s.store.StoreSummary(ctx, a.ID, a.Summary); err != nil {
		s.logger.Warn("Failed to store summary",
			logging.String("analysis_id", a.ID), logging.Err(err))
	}
}

func (s *service) cacheAnalysis(ctx context.Context, a *report.Analysis) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+a.ID, a, cacheTTL); err != nil {
		s.logger.Warn("Failed to cache analysis",
			logging.String("analysis_id", a.ID), logging.Err(err))
	}
}

// publishOutcome emits report.analyzed, plus report.flagged when the
// analysis needs clinician attention.
func (s *service) publishOutcome(ctx context.Context, a *report.Analysis) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, kafka.TopicReportAnalyzed, "report.analyzed", a.ID,
		kafka.ReportAnalyzedPayload{
			AnalysisID:   a.ID,
			DocumentHash: a.DocumentHash,
			PatientName:  a.Record.Name,
			ResultCount:  len(a.Results),
			AlertCount:   len(a.Alerts),
			AnalyzedAt:   a.CreatedAt,
		})
	if err != nil {
		s.logger.Warn("Failed to publish analyzed event",
			logging.String("analysis_id", a.ID), logging.Err(err))
	}

	if len(a.Alerts) == 0 && !a.HasFlags() {
		return
	}
	err = s.publisher.PublishEvent(ctx, kafka.TopicReportFlagged, "report.flagged", a.ID,
		kafka.ReportFlaggedPayload{
			AnalysisID: a.ID,
			Alerts:     a.Alerts,
			FlaggedAt:  a.CreatedAt,
		})
	if err != nil {
		s.logger.Warn("Failed to publish flagged event",
			logging.String("analysis_id", a.ID), logging.Err(err))
	}
}

// documentHash is the SHA-256 of the document text, used for dedupe.
func documentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
