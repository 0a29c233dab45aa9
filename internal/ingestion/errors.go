package ingestion

import "errors"

// ErrReloadFailed wraps every reload failure. The previously stored table is
// still available when it is returned.
var ErrReloadFailed = errors.New("reload failed, stale data still available")

// FailurePolicy decides how the merge engine reacts to a failed player fetch.
type FailurePolicy string

const (
	// FailAbort cancels the reload on the first failed player.
	FailAbort FailurePolicy = "abort"
	// FailBestEffort skips failed players and stores the rest.
	FailBestEffort FailurePolicy = "best_effort"
)
