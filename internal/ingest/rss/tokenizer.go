package rss

import (
	"strings"
	"unicode"
)

// minTokenLength drops stray single-character tokens left by punctuation
// stripping.
const minTokenLength = 2

// Tokenizer normalizes article text into the token stream used for
// shingling.
type Tokenizer struct{}

// TokensForShingles lowercases title and summary, strips punctuation, and
// drops tokens shorter than two characters.
func (Tokenizer) TokensForShingles(title, summary string) []string {
	text := strings.ToLower(title + " " + summary)

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))

	for _, field := range fields {
		if len(field) < minTokenLength {
			continue
		}

		tokens = append(tokens, field)
	}

	return tokens
}
