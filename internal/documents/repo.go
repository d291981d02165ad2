package documents

import (
	"context"
	"time"
)

// Repo defines persistence operations for documents.
//
// Lookups are scoped to the owning user and return ErrNotFound for foreign
// or missing ids. Status transitions only leave StatusProcessing; a document
// in any other state yields ErrNotProcessing.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userID, id string) (Document, error)
	GetWithCounts(ctx context.Context, userID, id string) (DocumentWithCounts, error)
	// ListWithCounts returns the user's documents newest first, without text or chunks.
	ListWithCounts(ctx context.Context, userID string) ([]DocumentWithCounts, error)
	CompleteProcessing(ctx context.Context, id, text string, chunks []string) error
	FailProcessing(ctx context.Context, id string) error
	TouchLastAccessed(ctx context.Context, userID, id string, at time.Time) error
	Delete(ctx context.Context, userID, id string) error
}
