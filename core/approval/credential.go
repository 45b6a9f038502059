package approval

import (
	"crypto/rand"
	"math/big"
)

const (
	MinCredentialLength = 12

	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	SymbolChars = "!@#$%^&*()-_=+"
	allChars    = lowerChars + upperChars + digitChars + SymbolChars
)

// GenerateTemporaryCredential returns a random one-time password of `length` characters (at least 12)
// with at least one lowercase, one uppercase, one digit and one symbol.
// It is meant for credentials that must be changed on first sign in, not for long-term secrets.
func GenerateTemporaryCredential(length int) (string, error) {
	if length < MinCredentialLength {
		length = MinCredentialLength
	}

	buf := make([]byte, 0, length)
	for _, set := range []string{lowerChars, upperChars, digitChars, SymbolChars} {
		c, err := randomChar(set)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < length {
		c, err := randomChar(allChars)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}

	// Fisher-Yates
	for i := len(buf) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", err
		}
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// randomInt returns a uniform random int in [0, max).
func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
