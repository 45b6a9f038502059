package approval

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTemporaryCredential(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		cred, err := GenerateTemporaryCredential(12)
		require.NoError(t, err)
		require.Len(t, cred, 12)

		var lower, upper, digit, symbol bool
		for _, r := range cred {
			switch {
			case unicode.IsLower(r):
				lower = true
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsDigit(r):
				digit = true
			case strings.ContainsRune(SymbolChars, r):
				symbol = true
			default:
				t.Fatalf("unexpected character %q in %q", r, cred)
			}
		}
		require.True(t, lower && upper && digit && symbol, "missing character class in %q", cred)
		seen[cred] = true
	}
	assert.Len(t, seen, 1000)
}

func TestGenerateTemporaryCredential_Length(t *testing.T) {
	tests := []struct {
		length  int
		wantLen int
	}{
		{0, MinCredentialLength},
		{8, MinCredentialLength},
		{12, 12},
		{32, 32},
	}
	for _, tc := range tests {
		cred, err := GenerateTemporaryCredential(tc.length)
		require.NoError(t, err)
		assert.Len(t, cred, tc.wantLen)
	}
}
