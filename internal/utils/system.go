package utils

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

var (
	unsafeNameChars = regexp.MustCompile(`[\x00-\x1f<>:"/\\|?*]`)
	repeatedDashes  = regexp.MustCompile(`-+`)
)

// SanitizeFileName turns a stored display name into something safe to create
// in a single directory: no path separators, control or reserved characters.
func SanitizeFileName(name string) string {
	// Only the last element counts; stored names never carry directories.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))

	// Trim whitespace.
	name = strings.TrimSpace(name)

	// Replace reserved characters with hyphens.
	name = unsafeNameChars.ReplaceAllString(name, "-")

	// Remove consecutive hyphens.
	name = repeatedDashes.ReplaceAllString(name, "-")

	// Dot-only names would refer to a directory.
	if strings.Trim(name, ".") == "" {
		name = ""
	}

	// If empty after sanitization, use a default.
	if name == "" {
		name = "file"
	}

	return name
}

// ClaimUniqueFile creates an empty file at dir/name, or at dir/"name (2).ext",
// "name (3).ext" and so on if that name is taken, and returns its path. The
// name is claimed with an exclusive create, so two callers never get the same
// path and no existing file is touched.
func ClaimUniqueFile(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for suffix := 2; ; suffix++ {
		f, err := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			if err := f.Close(); err != nil {
				os.Remove(candidate)
				return "", fmt.Errorf("failed to create %s: %w", candidate, err)
			}
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}
		candidate = filepath.Join(dir, base+" ("+strconv.Itoa(suffix)+")"+ext)
	}
}
