package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			words:    []string{"badger", "badger", "badger"},
		},
		{
			name:     "Leet speak substitution",
			input:    "what a b4dg3r",
			expected: "what a ******",
			words:    []string{"badger"},
		},
		{
			name:     "Internal punctuation noise",
			input:    "I saw a b.a.d.g.e.r today",
			expected: "I saw a *********** today",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase",
			input:    "BADGER and SNAKE",
			expected: "****** and *****",
			words:    []string{"badger", "snake"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger!",
			expected: "I love ******!",
			words:    []string{"badger"},
		},
		{
			name:     "Nothing to censor",
			input:    "chat-sync is amazing",
			expected: "chat-sync is amazing",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			masked, found := mod.Censor(tt.input)
			req.Equal(tt.expected, masked)
			req.Equal(tt.words, found)
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	req := require.New(t)
	req.Equal("en", DetectLanguage("the quick brown fox jumps over the lazy dog"))
	req.Equal("fr", DetectLanguage("le renard brun saute par dessus le chien paresseux"))
}
