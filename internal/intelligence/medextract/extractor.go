package medextract

import (
	"context"
	"time"

	"github.com/medtext/reportiq/internal/domain/report"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// PipelineConfig holds tuneable parameters for one extraction run.
type PipelineConfig struct {
	// MaxTextLength truncates pathological inputs before any matcher runs.
	MaxTextLength int `json:"max_text_length" yaml:"max_text_length"`

	// IncludeRawText copies the normalized text onto the result for
	// callers that persist it alongside the structured output.
	IncludeRawText bool `json:"include_raw_text" yaml:"include_raw_text"`
}

// DefaultPipelineConfig returns production-ready defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxTextLength:  500000,
		IncludeRawText: true,
	}
}

// ---------------------------------------------------------------------------
// Dependency interfaces
// ---------------------------------------------------------------------------

// Metrics records operational telemetry for pipeline runs.
type Metrics interface {
	RecordAnalysis(ctx context.Context, resultCount, alertCount int, durationMs float64)
}

type noopMetrics struct{}

func (noopMetrics) RecordAnalysis(context.Context, int, int, float64) {}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// Result is the output of a single Analyze call: the extracted patient
// record, the raw lab detections, their interpretations, derived alerts,
// and the rendered summary.
type Result struct {
	Record         report.PatientRecord       `json:"record"`
	Entries        []report.LabTestEntry      `json:"entries"`
	Results        []report.InterpretedResult `json:"results"`
	Alerts         []string                   `json:"alerts"`
	Summary        string                     `json:"summary"`
	NormalizedText string                     `json:"normalized_text,omitempty"`
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline is the top-level API for report analysis.  Implementations are
// stateless between calls and safe for concurrent use.
type Pipeline interface {
	Analyze(ctx context.Context, doc report.RawDocument) (*Result, error)
}

type pipelineImpl struct {
	ranges  *RangeTable
	config  PipelineConfig
	metrics Metrics
	logger  logging.Logger
}

// NewPipeline constructs a fully-wired pipeline.  The range table is
// required; metrics and logger fall back to no-op implementations.
func NewPipeline(ranges *RangeTable, config PipelineConfig, metrics Metrics, logger logging.Logger) (Pipeline, error) {
	if ranges == nil {
		return nil, errors.New(errors.CodeInvalidParam, "range table is required")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &pipelineImpl{
		ranges:  ranges,
		config:  config,
		metrics: metrics,
		logger:  logger.Named("medextract"),
	}, nil
}

// Analyze runs the full pipeline over one document: normalization, patient
// field extraction, lab line parsing, interpretation, alert derivation, and
// summary rendering.  Analyze is deterministic: the same document always
// yields the same Result.
func (p *pipelineImpl) Analyze(ctx context.Context, doc report.RawDocument) (*Result, error) {
	start := time.Now()

	text, err := NormalizeText(doc.Text)
	if err != nil {
		return nil, err
	}
	if p.config.MaxTextLength > 0 && len(text) > p.config.MaxTextLength {
		text = text[:p.config.MaxTextLength]
	}

	rec := ExtractBasicFields(text)
	ExtractVitals(text, &rec)
	ExtractNarrative(text, &rec)

	entries := ParseLabLines(text)
	sex := report.ResolveSex(rec.Sex)
	results := InterpretEntries(entries, sex, p.ranges)
	alerts := BuildAlerts(rec, results)
	summary := BuildSummary(rec, results, alerts)

	res := &Result{
		Record:  rec,
		Entries: entries,
		Results: results,
		Alerts:  alerts,
		Summary: summary,
	}
	if p.config.IncludeRawText {
		res.NormalizedText = text
	}

	elapsed := time.Since(start)
	p.metrics.RecordAnalysis(ctx, len(results), len(alerts), float64(elapsed.Milliseconds()))
	p.logger.Debug("analysis complete",
		logging.Int("entries", len(entries)),
		logging.Int("alerts", len(alerts)),
		logging.Duration("took", elapsed),
	)
	return res, nil
}
