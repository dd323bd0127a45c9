package ledger_repo

import (
	"context"

	"paynotify/internal/domain"
)

// LedgerRepository remembers which enriched events have already been
// appended to the output topic.
type LedgerRepository interface {
	IsPublished(ctx context.Context, idempotencyKey string) (bool, error)
	// RecordPublished is idempotent: recording an existing key is not an error.
	RecordPublished(ctx context.Context, record domain.PublishRecord) error
}
