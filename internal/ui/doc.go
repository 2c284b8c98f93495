// Package ui provides semantic text formatting for CLI output.
//
// This package defines formatters for different types of content (code,
// paths, errors, etc.) that render appropriately based on terminal
// capabilities. When colors are available, content is colorized. When
// NO_COLOR is set or the terminal doesn't support colors, text-based
// decorations (backticks, quotes) are used instead.
//
// # Semantic Formatters
//
// Use the appropriate formatter for the content type:
//
//	ui.Code.Sprint("locker init")              // Commands and code
//	ui.Path.Sprint("~/.config/locker")        // File paths
//	ui.Success.Sprint("✓")                     // Success indicators
//	ui.Error.Sprint("✗")                       // Error indicators
//	ui.Warning.Sprint("[dry-run]")             // Warnings
//	ui.Info.Sprint("→")                        // Informational hints
//	ui.Highlight.Sprint("notes.txt")          // User values
//	ui.Muted.Sprint("optional")               // De-emphasized text
//	ui.Token.Sprint("AB12-CD34-EF56-GH78")    // Recovery tokens
//	ui.Hex.Sprint("9f86d081...")              // Salts and envelopes
//
// # Boxes and Sizes
//
// TokenBox frames a recovery token so it stands out when it is shown at
// setup or after a rotation. FormatSize renders byte counts for file
// listings.
//
// # Color Behavior
//
// Colors are disabled when:
//   - NO_COLOR environment variable is set (any value)
//   - Terminal doesn't support colors (TERM=dumb, not a TTY)
//
// When colors are disabled, formatters apply text decorations:
//   - Code: `backticks`
//   - Highlight: 'single quotes'
//   - Muted: (parentheses)
//   - Token: [brackets]
//   - Others: no decoration (self-evident from context)
package ui
