package apperr

import (
	"errors"

	"gorm.io/gorm"
)

// Error kinds of the pipeline. Handlers classify failures with errors.Is so
// the worker can decide between surfacing, retrying, and aborting.
var (
	// ErrInvalidArgument covers malformed payloads, empty queries, and
	// rejected state transitions. Surfaced to the caller, never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned for unknown raw payload or feedback ids.
	ErrNotFound = errors.New("not found")
	// ErrNormalization marks undecodable content or zero conversations.
	ErrNormalization = errors.New("normalization failed")
	// ErrAnalysis marks a raw payload with no turns to analyze.
	ErrAnalysis = errors.New("analysis failed")
	// ErrCorrelation marks a raw payload with nothing to correlate.
	ErrCorrelation = errors.New("correlation failed")
	// ErrExport marks an export with no raw record or no turns.
	ErrExport = errors.New("export failed")
	// ErrTransient marks store/broker I/O failures. The worker retries
	// these with backoff.
	ErrTransient = errors.New("transient failure")
	// ErrFatal marks constraint violations from an inconsistent store.
	// The worker aborts without retry.
	ErrFatal = errors.New("fatal failure")
)

// permanent are the error kinds that retrying cannot fix.
var permanent = []error{
	ErrInvalidArgument,
	ErrNotFound,
	ErrNormalization,
	ErrAnalysis,
	ErrCorrelation,
	ErrExport,
	ErrFatal,
	gorm.ErrDuplicatedKey,
}

// Transient reports whether err should be handed back to the scheduler for
// a retry rather than failing the job permanently. Unclassified errors are
// assumed to be I/O hiccups and retried; the known domain failures and
// constraint violations are not.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	for _, kind := range permanent {
		if errors.Is(err, kind) {
			return false
		}
	}
	return true
}
