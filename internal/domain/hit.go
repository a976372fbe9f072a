package domain

// CatalogHit is a corpus row paired with its similarity score.
type CatalogHit struct {
	Item  CatalogItem
	Score float64
}
