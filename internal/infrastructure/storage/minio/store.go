package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/medtext/reportiq/internal/infrastructure/monitoring/logging"
	"github.com/medtext/reportiq/pkg/errors"
)

var (
	// ErrObjectNotFound is returned when a report object does not exist.
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	// ErrInvalidObjectKey is returned for empty analysis IDs.
	ErrInvalidObjectKey = errors.New(errors.ErrCodeValidation, "analysis id required")
)

// Object key layout inside the reports bucket.
const (
	rawPrefix     = "raw/"
	summaryPrefix = "summaries/"
)

// ReportStore persists the original uploaded document and the rendered
// text summary for each analysis.
type ReportStore interface {
	StoreRaw(ctx context.Context, analysisID string, data []byte, contentType string) (string, error)
	StoreSummary(ctx context.Context, analysisID, summary string) (string, error)
	GetRaw(ctx context.Context, analysisID string) ([]byte, string, error)
	GetSummary(ctx context.Context, analysisID string) (string, error)
	Delete(ctx context.Context, analysisID string) error
	SummaryURL(ctx context.Context, analysisID string) (string, error)
}

type reportStore struct {
	api           objectAPI
	bucket        string
	presignExpiry time.Duration
	logger        logging.Logger
}

// NewReportStore builds a ReportStore over the client's bucket.
func NewReportStore(client *Client, presignExpiry time.Duration, log logging.Logger) ReportStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &reportStore{
		api:           client,
		bucket:        client.Bucket(),
		presignExpiry: presignExpiry,
		logger:        log.Named("report_store"),
	}
}

func rawKey(analysisID string) string     { return rawPrefix + analysisID }
func summaryKey(analysisID string) string { return summaryPrefix + analysisID + ".txt" }

func (s *reportStore) StoreRaw(ctx context.Context, analysisID string, data []byte, contentType string) (string, error) {
	if analysisID == "" {
		return "", ErrInvalidObjectKey
	}
	if contentType == "" && len(data) > 0 {
		n := len(data)
		if n > 512 {
			n = 512
		}
		contentType = http.DetectContentType(data[:n])
	}

	key := rawKey(analysisID)
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportStoreFailed, "failed to store raw document")
	}

	s.logger.Debug("Stored raw document",
		logging.String("key", key), logging.Int("size", len(data)))
	return key, nil
}

func (s *reportStore) StoreSummary(ctx context.Context, analysisID, summary string) (string, error) {
	if analysisID == "" {
		return "", ErrInvalidObjectKey
	}

	key := summaryKey(analysisID)
	data := []byte(summary)
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeReportStoreFailed, "failed to store summary")
	}
	return key, nil
}

func (s *reportStore) GetRaw(ctx context.Context, analysisID string) ([]byte, string, error) {
	if analysisID == "" {
		return nil, "", ErrInvalidObjectKey
	}

	key := rawKey(analysisID)
	stat, err := s.api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, "", translateError(err)
	}

	obj, err := s.api.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", translateError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, "", errors.Wrap(err, errors.ErrCodeInternal, "failed to read raw document")
	}
	return data, stat.ContentType, nil
}

func (s *reportStore) GetSummary(ctx context.Context, analysisID string) (string, error) {
	if analysisID == "" {
		return "", ErrInvalidObjectKey
	}

	obj, err := s.api.GetObject(ctx, s.bucket, summaryKey(analysisID), minio.GetObjectOptions{})
	if err != nil {
		return "", translateError(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", translateError(err)
	}
	return string(data), nil
}

// Delete removes both objects for the analysis. Missing objects are not an
// error so deletes stay idempotent.
func (s *reportStore) Delete(ctx context.Context, analysisID string) error {
	if analysisID == "" {
		return ErrInvalidObjectKey
	}
	for _, key := range []string{rawKey(analysisID), summaryKey(analysisID)} {
		if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete object")
		}
	}
	return nil
}

func (s *reportStore) SummaryURL(ctx context.Context, analysisID string) (string, error) {
	if analysisID == "" {
		return "", ErrInvalidObjectKey
	}
	u, err := s.api.PresignedGetObject(ctx, s.bucket, summaryKey(analysisID), s.presignExpiry, nil)
	if err != nil {
		return "", translateError(err)
	}
	return u.String(), nil
}

func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrObjectNotFound
	}
	return errors.Wrap(err, errors.ErrCodeExternalService, "object storage error")
}
