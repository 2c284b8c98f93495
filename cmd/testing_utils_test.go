package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/locker/internal/configs"
)

const testPassword = "correct-horse-battery"

// setupTestEnvironment points locker at a temporary data dir and a config
// path that does not exist yet, and disables color so output is stable.
func setupTestEnvironment(t *testing.T) (dataDir, configFile string) {
	t.Helper()

	root := t.TempDir()
	dataDir = filepath.Join(root, "data")
	configFile = filepath.Join(root, "config", "config.toml")

	t.Setenv(configs.DataDirEnv, dataDir)
	t.Setenv("NO_COLOR", "1")

	ResetGlobalState()
	t.Cleanup(ResetGlobalState)

	return dataDir, configFile
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	r, w, _ := os.Pipe()
	os.Stdout = w
	os.Stderr = w

	outputChan := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outputChan <- buf.String()
	}()

	err := fn()

	w.Close()
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-outputChan, err
}

// withStdin replaces os.Stdin with a pipe carrying input for the duration of the test.
func withStdin(t *testing.T, input string) {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Failed to create stdin pipe: %v", err)
	}
	if _, err := w.WriteString(input); err != nil {
		t.Fatalf("Failed to write stdin: %v", err)
	}
	w.Close()

	original := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = original
		r.Close()
	})
}

// runCLI executes locker with args and the given stdin, returning its output.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	ResetGlobalState()
	withStdin(t, stdin)
	RootCmd.SetArgs(args)

	return captureOutput(RootCmd.Execute)
}
