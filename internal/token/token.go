// Package token implements the single tokenization rule shared by the
// inverted search index and the $search filter operator. Indexing and
// querying must split text identically or prefix/substring matching would
// silently diverge.
package token

import "strings"

// Tokenize lowercases s and splits on runs of characters other than ASCII
// a-z and 0-9, dropping empty tokens.
func Tokenize(s string) []string {
	lower := strings.ToLower(s)
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// Set builds a deduplicated token set from a string.
func Set(s string) map[string]struct{} {
	toks := Tokenize(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}
