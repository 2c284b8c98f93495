package utils

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "notes.txt", "notes.txt"},
		{"KeepsSpaces", "My Notes.txt", "My Notes.txt"},
		{"StripsDirectories", "../../etc/passwd", "passwd"},
		{"StripsWindowsDirectories", `C:\Users\me\tax.pdf`, "tax.pdf"},
		{"ReplacesReserved", `a<b>c|d?.txt`, "a-b-c-d-.txt"},
		{"RemoveConsecutiveHyphens", "a<<>>b", "a-b"},
		{"TrimWhitespace", "  report.pdf  ", "report.pdf"},
		{"EmptyToDefault", "", "file"},
		{"DotsToDefault", "..", "file"},
		{"ControlChars", "bad\x00name\n.txt", "bad-name-.txt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := SanitizeFileName(tc.input)
			if result != tc.expected {
				t.Errorf("SanitizeFileName(%q) = %q, expected %q", tc.input, result, tc.expected)
			}
		})
	}
}

func TestClaimUniqueFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("FreeName", func(t *testing.T) {
		path, err := ClaimUniqueFile(dir, "report.pdf")
		if err != nil {
			t.Fatalf("ClaimUniqueFile failed: %v", err)
		}
		if path != filepath.Join(dir, "report.pdf") {
			t.Errorf("Expected report.pdf, got %s", path)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Claimed file should exist: %v", err)
		}
	})

	t.Run("AppendsNumberOnConflict", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("original"), 0600); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
		path, err := ClaimUniqueFile(dir, "report.pdf")
		if err != nil {
			t.Fatalf("ClaimUniqueFile failed: %v", err)
		}
		if path != filepath.Join(dir, "report (2).pdf") {
			t.Errorf("Expected report (2).pdf, got %s", path)
		}
		data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
		if err != nil {
			t.Fatalf("Failed to read original: %v", err)
		}
		if string(data) != "original" {
			t.Errorf("Existing file was modified: %q", data)
		}
	})

	t.Run("IncrementsForMultipleConflicts", func(t *testing.T) {
		path, err := ClaimUniqueFile(dir, "report.pdf")
		if err != nil {
			t.Fatalf("ClaimUniqueFile failed: %v", err)
		}
		if path != filepath.Join(dir, "report (3).pdf") {
			t.Errorf("Expected report (3).pdf, got %s", path)
		}
	})

	t.Run("ConcurrentClaimsGetDistinctNames", func(t *testing.T) {
		const workers = 16
		paths := make([]string, workers)
		errs := make([]error, workers)

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				paths[i], errs[i] = ClaimUniqueFile(dir, "race.txt")
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool)
		for i, path := range paths {
			if errs[i] != nil {
				t.Fatalf("ClaimUniqueFile failed: %v", errs[i])
			}
			if seen[path] {
				t.Errorf("Path %s was handed out twice", path)
			}
			seen[path] = true
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		if _, err := ClaimUniqueFile(filepath.Join(dir, "missing"), "a.txt"); err == nil {
			t.Error("Expected error for a missing directory")
		}
	})
}

func TestGetUsername(t *testing.T) {
	username, err := GetUsername()
	if err != nil {
		t.Fatalf("GetUsername failed: %v", err)
	}
	if username == "" {
		t.Fatal("Expected non-empty username")
	}
}

func TestGetHostname(t *testing.T) {
	hostname, err := GetHostname()
	if err != nil {
		t.Fatalf("GetHostname failed: %v", err)
	}
	if hostname == "" {
		t.Fatal("Expected non-empty hostname")
	}
}
