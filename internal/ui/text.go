package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter renders one kind of CLI output. With color it is colorized; without
// it the text is wrapped in prefix and suffix so the kind stays recognizable.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f Formatter) render(text string) string {
	if colorDisabled() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// Sprint renders the arguments as fmt.Sprint would join them.
func (f Formatter) Sprint(a ...interface{}) string {
	return f.render(fmt.Sprint(a...))
}

// Sprintf renders a formatted string.
func (f Formatter) Sprintf(format string, a ...interface{}) string {
	return f.render(fmt.Sprintf(format, a...))
}

// colorDisabled honors NO_COLOR (https://no-color.org/) and fatih/color's own
// terminal detection.
func colorDisabled() bool {
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return true
	}
	return color.NoColor
}

// Status markers that lead a result line: ✓, ✗, ⚠ and →.
var (
	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}
	Info    = Formatter{color.New(color.FgCyan), "", ""}
)

// Values quoted inside messages.
var (
	// Code is a command the user can run next, `backticked` without color.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path is a data directory, config file or extracted file.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	// Highlight is a vault file name, ID or key generation, 'quoted' without color.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted is secondary detail such as sizes and timestamps, (parenthesized)
	// without color.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)

// Key material shown by init, rotate and info.
var (
	// Token is a recovery token. It is printed once, so it is [bracketed]
	// without color to keep it from blending into the surrounding text.
	Token = Formatter{color.New(color.FgMagenta, color.Bold), "[", "]"}

	// Hex is a salt or envelope preview.
	Hex = Formatter{color.New(color.FgHiBlack), "", ""}
)
