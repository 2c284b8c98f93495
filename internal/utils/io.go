package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	stdinMu   sync.Mutex
	stdinFile *os.File
	stdinBuf  *bufio.Reader
)

// ReadSecretStdin reads the next line from stdin for --password-stdin style
// flags. Successive calls return successive lines, so a command needing two
// secrets reads them in order. Returns an error if stdin is a terminal (no
// piped data) or the line is empty.
func ReadSecretStdin() (string, error) {
	stdinMu.Lock()
	defer stdinMu.Unlock()

	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat stdin: %w", err)
	}

	// If ModeCharDevice is set, stdin is connected to a terminal.
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return "", fmt.Errorf("no data provided on stdin (hint: pipe the password to this command)")
	}

	// Rebind if os.Stdin was replaced, as tests do.
	if stdinFile != os.Stdin {
		stdinFile = os.Stdin
		stdinBuf = bufio.NewReader(os.Stdin)
	}
	return ReadSecretLine(stdinBuf)
}

// ReadSecretLine reads the first line of r, without its line ending. When r
// is already a *bufio.Reader it is used directly, so unread lines stay buffered.
func ReadSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("stdin is empty")
	}

	return line, nil
}
