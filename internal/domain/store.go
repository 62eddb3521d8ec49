package domain

import (
	"context"
	"time"
)

// MirrorStore persists the audit trail of mirror attempts. It is an audit
// log only; the pipeline never reads it back to decide behavior.
type MirrorStore interface {
	Insert(ctx context.Context, rec MirrorRecord) error
	UpdateResult(ctx context.Context, id string, status MirrorStatus, orderID, errorReason string, executedAt time.Time) error
	ListRecent(ctx context.Context, limit int) ([]MirrorRecord, error)
}
