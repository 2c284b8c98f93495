package secrets

import (
	"errors"
	"regexp"
	"testing"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
)

var tokenPattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestCreateRecoveryToken_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := CreateRecoveryToken()
		if err != nil {
			t.Fatalf("Failed to create token: %v", err)
		}
		if !tokenPattern.MatchString(token) {
			t.Fatalf("Token %q does not match expected format", token)
		}
		if seen[token] {
			t.Fatalf("Duplicate token generated: %q", token)
		}
		seen[token] = true
	}
}

func TestNormalizeRecoveryToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"canonical", "AB12-CD34-EF56-GH78", "AB12-CD34-EF56-GH78"},
		{"lower case", "ab12-cd34-ef56-gh78", "AB12-CD34-EF56-GH78"},
		{"whitespace", "  AB12-CD34-EF56-GH78\n", "AB12-CD34-EF56-GH78"},
		{"no dashes", "AB12CD34EF56GH78", "AB12-CD34-EF56-GH78"},
		{"spaces", "AB12 CD34 EF56 GH78", "AB12-CD34-EF56-GH78"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRecoveryToken(tt.input)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeRecoveryToken(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeRecoveryToken_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"AB12-CD34-EF56",
		"AB12-CD34-EF56-GH78-IJ90",
		"AB12-CD34-EF56-GH7!",
		"ÀB12-CD34-EF56-GH78",
	}

	for _, input := range inputs {
		if _, err := NormalizeRecoveryToken(input); !errors.Is(err, kerrors.ErrInvalidToken) {
			t.Errorf("Input %q: expected ErrInvalidToken, got %v", input, err)
		}
	}
}
