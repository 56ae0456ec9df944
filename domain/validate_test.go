package domain

import (
	"testing"

	"chat-sync/errors"

	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{
			name:     "Plain name passes unchanged",
			input:    "alice",
			expected: "alice",
		},
		{
			name:     "Surrounding whitespace is trimmed",
			input:    "  alice  ",
			expected: "alice",
		},
		{
			name:  "Empty string is rejected",
			input: "",
			err:   errors.ErrUsernameRequired,
		},
		{
			name:  "Whitespace only is rejected",
			input: "   \t ",
			err:   errors.ErrUsernameRequired,
		},
		{
			name:     "Interior whitespace is preserved",
			input:    "alice smith",
			expected: "alice smith",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			username, err := ValidateUsername(tt.input)
			if tt.err != nil {
				req.ErrorIs(err, tt.err)
				return
			}
			req.NoError(err)
			req.Equal(tt.expected, username)
		})
	}
}
