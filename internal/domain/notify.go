package domain

import (
	"context"
)

// Notifier delivers alert notifications to operators. Delivery failures
// are logged by callers and never fail transaction processing.
type Notifier interface {
	Notify(ctx context.Context, tx *Transaction, alert *Alert) error
}
