package syncclient

import "fmt"

// RemoteError wraps a failed remote write. The local change that anticipated
// it has already been rolled back when this is returned.
type RemoteError struct {
	ID  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("syncclient: remote write for %s failed: %v", e.ID, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// DriftError reports that reconciliation could not bring the local cache back
// in line with the server for one or more records.
type DriftError struct {
	Failed int
	Err    error
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("syncclient: reconcile left %d records stale: %v", e.Failed, e.Err)
}

func (e *DriftError) Unwrap() error { return e.Err }
