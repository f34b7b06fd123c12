// Package repositories provides the PostgreSQL-backed implementations of the
// domain repository interfaces.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/prometheus"
	apperrors "github.com/medtext/reportiq/pkg/errors"
)

// AnalysisRepository is the PostgreSQL implementation of report.Repository.
// The patient record and interpreted results are stored as JSONB; alerts as a
// text array.  Every method accepts a context for cancellation and uses
// parameterised queries exclusively.
type AnalysisRepository struct {
	pool    *pgxpool.Pool
	logger  logging.Logger
	metrics *prometheus.AppMetrics
}

// NewAnalysisRepository constructs a ready-to-use AnalysisRepository.
// Metrics may be nil.
func NewAnalysisRepository(pool *pgxpool.Pool, logger logging.Logger, metrics *prometheus.AppMetrics) *AnalysisRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnalysisRepository{pool: pool, logger: logger.Named("analysis_repo"), metrics: metrics}
}

const analysisColumns = `id, document_hash, format, record, results, alerts, summary, raw_text, created_at`

// Save persists a new analysis.  An existing ID is a conflict.
func (r *AnalysisRepository) Save(ctx context.Context, a *report.Analysis) error {
	start := time.Now()
	defer func() { prometheus.RecordDBQuery(r.metrics, "save", time.Since(start)) }()

	recordJSON, err := json.Marshal(a.Record)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode patient record")
	}
	resultsJSON, err := json.Marshal(a.Results)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode results")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analyses (`+analysisColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.DocumentHash, string(a.Format), recordJSON, resultsJSON,
		a.Alerts, a.Summary, a.RawText, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.New(apperrors.ErrCodeConflict, "analysis already exists").WithDetail(a.ID)
		}
		r.logger.Error("save analysis failed", logging.String("id", a.ID), logging.Err(err))
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to insert analysis")
	}
	return nil
}

// FindByID loads one analysis by primary key.
func (r *AnalysisRepository) FindByID(ctx context.Context, id string) (*report.Analysis, error) {
	start := time.Now()
	defer func() { prometheus.RecordDBQuery(r.metrics, "find_by_id", time.Since(start)) }()

	row := r.pool.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses WHERE id = $1`, id)
	return r.scanAnalysis(row)
}

// FindByDocumentHash returns the most recent analysis of the document with
// the given SHA-256.
func (r *AnalysisRepository) FindByDocumentHash(ctx context.Context, hash string) (*report.Analysis, error) {
	start := time.Now()
	defer func() { prometheus.RecordDBQuery(r.metrics, "find_by_hash", time.Since(start)) }()

	row := r.pool.QueryRow(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses WHERE document_hash = $1
		ORDER BY created_at DESC LIMIT 1`, hash)
	return r.scanAnalysis(row)
}

// List returns analyses newest-first.
func (r *AnalysisRepository) List(ctx context.Context, limit, offset int) ([]*report.Analysis, error) {
	start := time.Now()
	defer func() { prometheus.RecordDBQuery(r.metrics, "list", time.Since(start)) }()

	rows, err := r.pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		r.logger.Error("list analyses failed", logging.Err(err))
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to list analyses")
	}
	defer rows.Close()

	var out []*report.Analysis
	for rows.Next() {
		a, err := r.scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to iterate analyses")
	}
	return out, nil
}

// Delete removes an analysis; a missing ID is not an error.
func (r *AnalysisRepository) Delete(ctx context.Context, id string) error {
	start := time.Now()
	defer func() { prometheus.RecordDBQuery(r.metrics, "delete", time.Since(start)) }()

	_, err := r.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("delete analysis failed", logging.String("id", id), logging.Err(err))
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to delete analysis")
	}
	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *AnalysisRepository) scanAnalysis(row rowScanner) (*report.Analysis, error) {
	var (
		a           report.Analysis
		format      string
		recordJSON  []byte
		resultsJSON []byte
	)
	err := row.Scan(&a.ID, &a.DocumentHash, &format, &recordJSON, &resultsJSON,
		&a.Alerts, &a.Summary, &a.RawText, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.New(apperrors.ErrCodeReportNotFound, "analysis not found")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to scan analysis")
	}

	a.Format = report.SourceFormat(format)
	if err := json.Unmarshal(recordJSON, &a.Record); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to decode patient record")
	}
	if err := json.Unmarshal(resultsJSON, &a.Results); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to decode results")
	}
	return &a, nil
}

// isUniqueViolation detects the Postgres unique_violation SQLSTATE without
// binding this package to a particular pgx error type.
func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
