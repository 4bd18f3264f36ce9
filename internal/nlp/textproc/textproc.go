// Package textproc holds the text cleanup shared by the FAQ index, the intent
// classifier and the entity extractor.
package textproc

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	markupPattern     = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)
	tokenPattern      = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)
)

// StripMarkup returns the visible text of s when it carries HTML tags, such as
// messages pasted from the storefront widget. Plain text is returned as is.
func StripMarkup(s string) string {
	if !markupPattern.MatchString(s) {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return markupPattern.ReplaceAllString(s, " ")
	}

	doc.Find("script, style").Each(func(i int, sel *goquery.Selection) {
		sel.Remove()
	})

	return doc.Text()
}

// Normalize strips markup and URLs, lowercases, and collapses whitespace.
func Normalize(s string) string {
	s = StripMarkup(s)
	s = urlPattern.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokenize splits normalized text into word tokens of two or more
// characters.
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

func IsStopWord(token string) bool {
	_, ok := englishStopWords[token]
	return ok
}
