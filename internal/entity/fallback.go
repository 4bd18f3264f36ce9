package entity

import (
	"regexp"
	"strings"
)

var orderIDPattern = regexp.MustCompile(`#\d{4,6}`)

// productKeywords is the lexicon the rule fallback recognizes.
var productKeywords = []string{"shoes", "jacket", "item", "product"}

// genericProduct is the text recorded for a lexicon hit.
const genericProduct = "product"

// Fallback applies the deterministic rules: the first order number written as
// '#' plus 4-6 digits, and one generic product when any lexicon term occurs.
// It yields at most one entity per type.
func Fallback(text string) []Entity {
	var entities []Entity

	if match := orderIDPattern.FindString(text); match != "" {
		entities = append(entities, Entity{Text: match, Type: OrderID})
	}

	lower := strings.ToLower(text)
	for _, keyword := range productKeywords {
		if strings.Contains(lower, keyword) {
			entities = append(entities, Entity{Text: genericProduct, Type: Product})
			break
		}
	}

	return entities
}
