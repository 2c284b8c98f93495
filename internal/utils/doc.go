// Package utils provides shared helpers for locker commands and workflows.
//
// # Filesystem Utilities
//
//   - CollectFiles: expands file and directory arguments for add
//   - ClaimUniqueFile: claims a non-clobbering output name for extract
//   - SanitizeFileName: strips paths and unsafe characters from stored names
//   - FormatPaths: formats file paths for human-readable output
//
// # System Utilities
//
//   - GetUsername, GetHostname: identify who ran an operation for the audit log
//
// # Terminal Utilities
//
// Passwords are read without echo through golang.org/x/term. When stdin is
// piped, ReadSecretStdin reads the password from its first line instead.
// The recovery token is shown on a cleared screen and wiped after the user
// presses Enter (ClearScreen, WaitForEnterFromTTY).
package utils
