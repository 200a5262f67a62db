package index

import (
	"strings"
	"unicode"
)

// Normalize lowercases a text and collapses its whitespace
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Tokens splits a normalized text on whitespace and punctuation
func Tokens(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// Suffixes returns every token-aligned suffix of a normalized text, longest first.
// A query matches an item when it is a prefix of one of its suffixes.
func Suffixes(text string) []string {
	toks := strings.Fields(Normalize(text))
	ret := make([]string, 0, len(toks))
	for i := range toks {
		ret = append(ret, strings.Join(toks[i:], " "))
	}
	return ret
}

// Words extracts the distinct words of a document content, in order of appearance
func Words(content string) []string {
	seen := map[string]struct{}{}
	ret := []string{}
	for _, t := range Tokens(content) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		ret = append(ret, t)
	}
	return ret
}
