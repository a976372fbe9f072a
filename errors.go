package medfind

import "github.com/kailas-cloud/medfind/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuery = domain.ErrEmptyQuery
	ErrAuth       = domain.ErrAuth
	ErrFetch      = domain.ErrFetch
)
