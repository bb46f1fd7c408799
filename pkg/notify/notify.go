// Package notify delivers alerts for adverse scanner decisions.
//
// The scanner hands every non-SUCCESS entry to a Notifier. Delivery is
// best-effort: a failed notification is logged by the caller and never
// blocks a pass.
package notify

import (
	"context"

	"github.com/backmon-io/backmon/pkg/catalog/models"
)

// Notifier receives (job, entry) pairs for adverse transitions.
type Notifier interface {
	// Notify delivers an alert for the given decision. SUCCESS entries
	// are ignored. Implementations degrade gracefully when
	// unconfigured and must be safe for concurrent use.
	Notify(ctx context.Context, job *models.ExpectedJob, entry *models.BackupEntry) error
}

// NopNotifier discards every notification.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, *models.ExpectedJob, *models.BackupEntry) error {
	return nil
}
