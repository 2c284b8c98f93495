package utils

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadSecretLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"NoNewline", "hunter2hunter2", "hunter2hunter2"},
		{"TrailingNewline", "hunter2hunter2\n", "hunter2hunter2"},
		{"CRLF", "hunter2hunter2\r\n", "hunter2hunter2"},
		{"OnlyFirstLine", "first-line-pw\nsecond\n", "first-line-pw"},
		{"KeepsSpaces", "  spaced pw  \n", "  spaced pw  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReadSecretLine(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("ReadSecretLine failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("ReadSecretLine(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestReadSecretLine_Empty(t *testing.T) {
	for _, input := range []string{"", "\n", "\r\n"} {
		if _, err := ReadSecretLine(strings.NewReader(input)); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestReadSecretLine_SharedReader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("old-password\nnew-password\n"))

	first, err := ReadSecretLine(r)
	if err != nil {
		t.Fatalf("Failed to read first line: %v", err)
	}
	second, err := ReadSecretLine(r)
	if err != nil {
		t.Fatalf("Failed to read second line: %v", err)
	}

	if first != "old-password" || second != "new-password" {
		t.Errorf("Expected both lines in order, got %q and %q", first, second)
	}
}
