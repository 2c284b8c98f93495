package secrets

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
)

const (
	tokenAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenGroups    = 4
	tokenGroupSize = 4
)

// CreateRecoveryToken returns a random token of the form XXXX-XXXX-XXXX-XXXX
// drawn uniformly from [A-Z0-9].
func CreateRecoveryToken() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))

	var sb strings.Builder
	for g := 0; g < tokenGroups; g++ {
		if g > 0 {
			sb.WriteByte('-')
		}
		for i := 0; i < tokenGroupSize; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("failed to generate recovery token: %w", err)
			}
			sb.WriteByte(tokenAlphabet[n.Int64()])
		}
	}
	return sb.String(), nil
}

// NormalizeRecoveryToken accepts a token as a user might type it (lower case,
// surrounding whitespace, with or without dashes) and returns its canonical form.
func NormalizeRecoveryToken(input string) (string, error) {
	token := strings.ToUpper(strings.TrimSpace(input))
	bare := strings.ReplaceAll(token, "-", "")
	bare = strings.ReplaceAll(bare, " ", "")

	if len(bare) != tokenGroups*tokenGroupSize {
		return "", kerrors.ErrInvalidToken
	}
	for _, r := range bare {
		if !strings.ContainsRune(tokenAlphabet, r) {
			return "", kerrors.ErrInvalidToken
		}
	}

	groups := make([]string, 0, tokenGroups)
	for i := 0; i < len(bare); i += tokenGroupSize {
		groups = append(groups, bare[i:i+tokenGroupSize])
	}
	return strings.Join(groups, "-"), nil
}
