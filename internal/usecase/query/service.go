package query

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/medfind/internal/domain"
)

// Service turns raw user text into a StructuredQuery. It never fails:
// malformed input degrades to empty or nil fields.
type Service struct {
	classifier Classifier
	lexicon    domain.Lexicon
	logger     *zap.Logger
}

// New creates a query interpreter. The lexicon drives canonical term
// extraction; the classifier (usually the same lexicon) drives the
// domain-relevance flag.
func New(classifier Classifier, lexicon domain.Lexicon, logger *zap.Logger) *Service {
	return &Service{classifier: classifier, lexicon: lexicon, logger: logger}
}

// Conversational filler stripped by Normalize. Phrases before their
// single-word prefixes so "recommend me" wins over "recommend".
var fillerRegex = regexp.MustCompile(
	`\b(recommend me|recommend|show me|give me|find me|looking for|i want|i need|suggest|best|buy|cheap|please)\b`,
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips filler phrases and ?/!, and collapses
// whitespace. Idempotent: normalizing normalized text is a no-op.
func (s *Service) Normalize(text string) string {
	t := strings.ToLower(text)
	t = strings.NewReplacer("?", " ", "!", " ").Replace(t)

	// Stripping a filler can butt two words together into a new filler
	// phrase; repeat until stable.
	for {
		next := fillerRegex.ReplaceAllString(t, " ")
		next = strings.TrimSpace(whitespaceRegex.ReplaceAllString(next, " "))
		if next == t {
			return next
		}
		t = next
	}
}

// priceRegex matches an optional magnitude qualifier, an optional currency
// symbol, an amount with thousands separators and decimals, and an optional
// trailing 3-letter currency code. The leading guard keeps digits embedded in
// product tokens ("b12", "n95") from anchoring an amount.
var priceRegex = regexp.MustCompile(
	`(?i)(?:^|[^a-z0-9])(?:(?:under|below|less than|up to|<=|<)\s*)?(\$|€|£|₹|₨|rs\.?\s)?\s*([0-9][0-9,]*(?:\.[0-9]+)?)(?:\s*([a-zA-Z]{3})\b)?`,
)

var symbolCurrencies = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"₹": "INR",
	"₨": "PKR",
}

// codeCurrencies are the ISO codes the conversion table knows. A 3-letter
// word after the amount that is not one of these ("for", "new") is ordinary
// text, not a currency.
var codeCurrencies = map[string]struct{}{
	"USD": {},
	"EUR": {},
	"GBP": {},
	"INR": {},
	"PKR": {},
}

// ExtractPrice parses a price ceiling out of the raw text. It operates on the
// raw text because Normalize may strip qualifier words ("under", "cheap ...")
// that anchor the match. Returns the ceiling, the currency, and the matched
// substring so the caller can strip it from the cleaned text. No match or an
// unparseable amount yields (nil, nil, "").
func (s *Service) ExtractPrice(raw string) (*float64, *string, string) {
	m := priceRegex.FindStringSubmatch(raw)
	if m == nil {
		return nil, nil, ""
	}

	amountText := strings.ReplaceAll(m[2], ",", "")
	amount, err := strconv.ParseFloat(amountText, 64)
	if err != nil || amount < 0 {
		return nil, nil, ""
	}

	matched := m[0]

	// A recognized alphabetic code wins over a symbol; an unrecognized
	// trailing word is dropped from the matched phrase so the caller does
	// not strip it from the cleaned text.
	var currency *string
	if code := strings.ToUpper(m[3]); code != "" {
		if _, ok := codeCurrencies[code]; ok {
			currency = &code
		} else {
			matched = strings.TrimRight(strings.TrimSuffix(matched, m[3]), " \t")
		}
	}
	if currency == nil {
		if sym := strings.ToLower(strings.TrimSpace(m[1])); sym != "" {
			if c, ok := symbolCurrencies[sym]; ok {
				currency = &c
			} else if strings.HasPrefix(sym, "rs") {
				c := "PKR"
				currency = &c
			}
		}
	}

	return &amount, currency, matched
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "me": {}, "my": {}, "to": {},
	"for": {}, "of": {}, "with": {}, "in": {}, "on": {}, "at": {}, "is": {},
	"it": {}, "this": {}, "that": {}, "and": {}, "or": {}, "under": {},
	"below": {}, "than": {}, "less": {}, "up": {}, "want": {}, "need": {},
	"get": {}, "some": {}, "any": {}, "about": {}, "around": {},
}

// canonicalTerm reduces cleaned text to the short phrase used as the search
// key. Domain-relevant queries resolve to the highest-priority lexicon keyword
// present; everything else keeps the trailing non-stopword tokens as a cheap
// proxy for the product noun phrase.
func (s *Service) canonicalTerm(cleaned string, isRelevant bool) string {
	if isRelevant {
		if kw := s.lexicon.FirstKeyword(cleaned); kw != "" {
			return kw
		}
		return cleaned
	}

	var tokens []string
	for _, tok := range strings.Fields(cleaned) {
		if _, skip := stopwords[tok]; !skip {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return cleaned
	}
	if len(tokens) > 4 {
		tokens = tokens[len(tokens)-4:]
	}
	return strings.Join(tokens, " ")
}

// Optimize parses raw text into a StructuredQuery.
func (s *Service) Optimize(raw string) domain.StructuredQuery {
	cleaned := s.Normalize(raw)

	maxPrice, currency, matched := s.ExtractPrice(raw)

	// Drop the matched price phrase from the cleaned text so it does not
	// pollute domain classification or the canonical term.
	stripped := cleaned
	if matched != "" {
		phrase := strings.TrimSpace(whitespaceRegex.ReplaceAllString(strings.ToLower(matched), " "))
		stripped = strings.ReplaceAll(cleaned, phrase, " ")
		stripped = strings.TrimSpace(whitespaceRegex.ReplaceAllString(stripped, " "))
	}

	isMedical := s.classifier.Classify(stripped)
	term := s.canonicalTerm(stripped, isMedical)

	sq := domain.StructuredQuery{
		Query:     firstNonEmpty(term, stripped, cleaned, strings.TrimSpace(raw)),
		IsMedical: isMedical,
		MaxPrice:  maxPrice,
		Currency:  currency,
	}

	s.logger.Debug("query optimized",
		zap.String("raw", raw),
		zap.String("query", sq.Query),
		zap.Bool("is_medical", sq.IsMedical),
	)

	return sq
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
