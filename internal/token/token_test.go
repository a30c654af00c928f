package token_test

import (
	"testing"

	"github.com/steveyegge/proseql/internal/token"
	"github.com/stretchr/testify/assert"
)

func TestTokenizeLowercasesAndSplitsOnPunctuation(t *testing.T) {
	assert.Equal(t, []string{"write", "the", "release", "notes"}, token.Tokenize("Write the Release-Notes!"))
}

func TestTokenizeDropsEmptyTokensFromRepeatedSeparators(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, token.Tokenize("  a,,  b  "))
}

func TestTokenizeKeepsDigitsAsPartOfTokens(t *testing.T) {
	assert.Equal(t, []string{"v2", "release"}, token.Tokenize("v2-release"))
}

func TestTokenizeDoesNotStem(t *testing.T) {
	toks := token.Tokenize("document documentation")
	assert.Equal(t, []string{"document", "documentation"}, toks)
}

func TestSetDeduplicatesTokens(t *testing.T) {
	set := token.Set("release release notes")
	assert.Len(t, set, 2)
	_, hasRelease := set["release"]
	_, hasNotes := set["notes"]
	assert.True(t, hasRelease)
	assert.True(t, hasNotes)
}
