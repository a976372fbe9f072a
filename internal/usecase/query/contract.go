package query

// Classifier decides whether a text belongs to the product domain.
// The default implementation is keyword-based (domain.Lexicon); a
// similarity-based implementation can be swapped in behind the same contract.
type Classifier interface {
	Classify(text string) bool
}
