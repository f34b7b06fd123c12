package report

import "context"

// Repository is the persistence contract for stored analyses.  Implementations
// live under internal/infrastructure; the application layer depends only on
// this interface.
type Repository interface {
	// Save persists a new analysis.  Saving an ID that already exists is a
	// conflict error.
	Save(ctx context.Context, a *Analysis) error

	// FindByID loads one analysis.  Returns an ErrCodeReportNotFound error
	// when no row matches.
	FindByID(ctx context.Context, id string) (*Analysis, error)

	// FindByDocumentHash returns the most recent analysis of a document with
	// the given SHA-256, or an ErrCodeReportNotFound error.
	FindByDocumentHash(ctx context.Context, hash string) (*Analysis, error)

	// List returns analyses ordered newest-first.
	List(ctx context.Context, limit, offset int) ([]*Analysis, error)

	// Delete removes an analysis.  Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error
}
