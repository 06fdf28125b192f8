package fetch

import (
	"fmt"
	"strings"

	"github.com/uzuki-lab/kyotei-cli/internal/model"
)

// FetchError is one candidate's failure: timeout, transport error, bad
// status or an unrecognizable page. Always recoverable; the candidate loop
// advances past it.
type FetchError struct {
	SourceID string
	URL      string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch: %s returned status %d", e.SourceID, e.Status)
	}
	return fmt.Sprintf("fetch: %s failed: %v", e.SourceID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NoDataAvailable means every candidate was exhausted. It is user-visible
// but never process-fatal, and carries the full attempt trail for
// diagnostics.
type NoDataAvailable struct {
	Query     model.RaceQuery
	Attempted []string
	LastErr   error
}

func (e *NoDataAvailable) Error() string {
	return fmt.Sprintf("fetch: no pre-race data available for %s (tried %s)",
		e.Query.Key(), strings.Join(e.Attempted, ", "))
}

func (e *NoDataAvailable) Unwrap() error { return e.LastErr }
