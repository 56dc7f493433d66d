package poller

import "context"

// Poller runs reconciliation passes that keep one owned gauge family in sync
// with what a remote inventory API reports.
type Poller interface {
	// Name identifies the poller in logs and on the status page.
	Name() string

	// Poll runs one full pass: fetch every record, upsert its series, then
	// delete series whose records are gone. A returned error means the pass
	// aborted with no series deleted; series upserted before the failure
	// remain.
	Poll(ctx context.Context) error
}
