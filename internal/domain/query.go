package domain

// StructuredQuery is the parsed form of a raw user query.
// Built once per request by the query interpreter and read-only afterwards.
type StructuredQuery struct {
	Query     string   `json:"query"`
	IsMedical bool     `json:"is_medical"`
	MaxPrice  *float64 `json:"max_price"`
	Currency  *string  `json:"currency"`
}
