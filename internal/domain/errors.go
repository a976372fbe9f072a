package domain

import "errors"

var (
	// ErrEmptyQuery signals an empty or whitespace-only raw query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrAuth signals that no marketplace token could be obtained.
	ErrAuth = errors.New("marketplace auth failed")
	// ErrFetch signals that every marketplace query failed.
	ErrFetch = errors.New("marketplace fetch failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
