package domain

// CatalogItem is one row of the prebuilt similarity corpus, aligned with the
// corresponding row of the vector matrix. Immutable after load; shared
// read-only across concurrent requests.
type CatalogItem struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
