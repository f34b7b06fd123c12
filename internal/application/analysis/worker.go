package analysis

import (
	"context"

	"github.com/medtext/reportiq/internal/infrastructure/messaging/kafka"
	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/pkg/errors"
)

// Worker processes report.received events: it loads the stored document,
// runs the analysis, and persists the outcome under the enqueued ID.
type Worker struct {
	svc    *service
	logger logging.Logger
}

// NewWorker builds a worker over the application service. The service must
// have been constructed with a report store.
func NewWorker(svc Service, logger logging.Logger) (*Worker, error) {
	impl, ok := svc.(*service)
	if !ok {
		return nil, errors.New(errors.CodeInvalidParam, "unsupported service implementation")
	}
	if impl.store == nil {
		return nil, errors.New(errors.CodeInvalidParam, "worker requires a report store")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Worker{svc: impl, logger: logger.Named("worker")}, nil
}

// HandleReportReceived is the kafka handler for TopicReportReceived.
func (w *Worker) HandleReportReceived(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.DecodeEnvelope(msg)
	if err != nil {
		return err
	}

	var payload kafka.ReportReceivedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if payload.AnalysisID == "" {
		return errors.New(errors.ErrCodeValidation, "event missing analysis id")
	}

	data, contentType, err := w.svc.store.GetRaw(ctx, payload.AnalysisID)
	if err != nil {
		return err
	}

	doc, err := w.svc.extractor.Extract(ctx, payload.AnalysisID, contentType, data)
	if err != nil {
		return err
	}

	a, err := w.svc.analyzeDocument(ctx, payload.AnalysisID, *doc, data, contentType)
	if err != nil {
		return err
	}

	w.logger.Info("Queued report processed",
		logging.String("analysis_id", a.ID),
		logging.Int("results", len(a.Results)),
		logging.Int("alerts", len(a.Alerts)))
	return nil
}
