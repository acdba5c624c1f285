package cache

import (
	"context"
	"time"
)

// CallCache keeps a short-lived record of completed reminder calls.
type CallCache interface {
	StoreCompleted(ctx context.Context, reminderID, callSID string, completedAt time.Time) error
	LookupCompleted(ctx context.Context, reminderID string) (callSID string, ok bool, err error)
}
