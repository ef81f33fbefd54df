package perception

import "strings"

// Classifier flags text that implies an irreversible or high-consequence
// effect. Matching is a case-insensitive substring test.
type Classifier struct {
	terms []string
}

func NewClassifier(terms []string) *Classifier {
	normalized := make([]string, 0, len(terms))

	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			normalized = append(normalized, term)
		}
	}

	return &Classifier{terms: normalized}
}

func (c *Classifier) Sensitive(text string) bool {
	_, ok := c.Match(text)

	return ok
}

// Match returns the first term found in text.
func (c *Classifier) Match(text string) (string, bool) {
	lower := strings.ToLower(text)

	for _, term := range c.terms {
		if strings.Contains(lower, term) {
			return term, true
		}
	}

	return "", false
}
