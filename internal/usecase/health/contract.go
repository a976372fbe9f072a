package health

import "context"

// CachePinger checks cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// CorpusReader reports the size of the loaded similarity corpus.
type CorpusReader interface {
	Len() int
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
