package domain

import "strings"

// Lexicon holds the keyword configuration for domain classification.
// Keywords are product phrases in fixed priority order; Signals are generic
// words that mark a text as belonging to the domain at all.
type Lexicon struct {
	Keywords []string
	Signals  []string
}

// DefaultLexicon returns the built-in medical product lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Keywords: []string{
			"urine bag", "catheter", "blood pressure monitor", "thermometer",
			"pulse oximeter", "glucometer", "stethoscope", "surgical gloves",
			"wheelchair", "bandage", "nebulizer", "oxygen concentrator",
		},
		Signals: []string{
			"medical", "health", "surgical", "hospital", "glove", "monitor", "bp",
			"blood pressure", "stethoscope", "mask", "thermometer", "bandage",
			"rehab", "wheelchair", "clinic", "oxygen", "pulse", "nebulizer",
			"walker", "hearing", "care", "sanitizer", "brace", "pill", "medicine",
			"drug", "first aid", "iv", "infusion", "orthopedic", "dental",
			"urine", "urinal", "catheter",
		},
	}
}

// Classify reports whether the text belongs to the domain: it contains a
// keyword phrase or a generic signal word.
func (l Lexicon) Classify(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range l.Keywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	for _, sig := range l.Signals {
		if strings.Contains(t, sig) {
			return true
		}
	}
	return false
}

// FirstKeyword returns the first keyword (in priority order) contained in the
// text, or "" if none is present.
func (l Lexicon) FirstKeyword(text string) string {
	t := strings.ToLower(text)
	for _, kw := range l.Keywords {
		if strings.Contains(t, kw) {
			return kw
		}
	}
	return ""
}

// AllowsListing decides whether a listing title passes the domain filter for
// the given query text. When the query itself signals domain intent, the title
// must share a query token longer than 2 characters and contain a signal word.
// Queries without domain intent pass every title through.
func (l Lexicon) AllowsListing(title, query string) bool {
	t := strings.ToLower(title)
	q := strings.ToLower(query)

	if !l.Classify(q) {
		return true
	}

	overlap := true
	var hasTerms bool
	for _, w := range strings.Fields(q) {
		if len(w) <= 2 {
			continue
		}
		if !hasTerms {
			hasTerms = true
			overlap = false
		}
		if strings.Contains(t, w) {
			overlap = true
			break
		}
	}
	if !overlap {
		return false
	}

	for _, sig := range l.Signals {
		if strings.Contains(t, sig) {
			return true
		}
	}
	return false
}
