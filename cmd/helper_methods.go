package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	kerrors "github.com/PolarWolf314/locker/internal/errors"
	"github.com/PolarWolf314/locker/internal/secrets"
	"github.com/PolarWolf314/locker/internal/ui"
	"github.com/PolarWolf314/locker/internal/utils"

	"github.com/briandowns/spinner"
)

// startSpinner creates and starts a spinner with the given message when not in verbose or debug mode.
// Returns the spinner and a function that should be deferred to clean up.
//
// IMPORTANT: spinner.FinalMSG values do NOT need trailing newlines. The cleanup function
// adds the newline before printing the final message.
func startSpinner(message string) (*spinner.Spinner, func()) {
	return startSpinnerTo(message, os.Stdout)
}

// startSpinnerTo is startSpinner with the spinner and final message going to
// out, for commands whose stdout carries data.
func startSpinnerTo(message string, out io.Writer) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " " + message

	// Ignore color errors - continue without colored spinner if it fails.
	_ = s.Color("cyan")

	quiet := !verbose && !debug
	if quiet {
		s.Start()
		// Ensure log output is discarded unless in verbose mode.
		log.SetOutput(io.Discard)
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		if quiet {
			log.SetOutput(os.Stderr)
		}

		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = s.FinalMSG
			if !strings.HasSuffix(finalMsg, "\n") {
				finalMsg += "\n"
			}
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		if finalMsg != "" {
			fmt.Fprint(out, finalMsg)
		}
	}

	return s, cleanup
}

// readPassword returns the vault password from the terminal, or from stdin
// with --password-stdin.
func readPassword(prompt string) (string, error) {
	if passwordStdin {
		return utils.ReadSecretStdin()
	}
	b, err := utils.ReadPassphrase(prompt)
	if err != nil {
		return "", err
	}
	defer secrets.Zero(b)
	return string(b), nil
}

// readNewPassword asks for a new password twice. With --password-stdin it is
// read once.
func readNewPassword(prompt string) (string, error) {
	if passwordStdin {
		return utils.ReadSecretStdin()
	}
	b, err := utils.ReadNewPassphrase(prompt, "Confirm password: ")
	if err != nil {
		return "", err
	}
	defer secrets.Zero(b)
	return string(b), nil
}

// readToken asks for the recovery token. Input is hidden like a password.
func readToken() (string, error) {
	return readPassword("Recovery token: ")
}

// confirm asks a yes/no question on stdin. With --password-stdin there is no
// one to ask, so it returns false and the caller must be run with --force.
func confirm(question string) bool {
	if passwordStdin {
		return false
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print(question + " [y/N]: ")
	response, err := reader.ReadString('\n')
	if err != nil {
		Logger.Errorf("Failed to read response: %v", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// formatError turns a workflow error into the message shown to the user.
func formatError(err error) string {
	switch {
	case errors.Is(err, kerrors.ErrVaultNotInitialized):
		return ui.Error.Sprint("✗") + " No vault found\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("locker init") + " to create one"

	case errors.Is(err, kerrors.ErrVaultAlreadyInitialized):
		return ui.Error.Sprint("✗") + " A vault already exists\n" +
			ui.Info.Sprint("→") + " Use " + ui.Code.Sprint("locker info") + " to see where it lives"

	case errors.Is(err, kerrors.ErrAuthentication):
		return ui.Error.Sprint("✗") + " Wrong password or recovery token\n" +
			ui.Info.Sprint("→") + " Forgot your password? Run " + ui.Code.Sprint("locker recover")

	case errors.Is(err, kerrors.ErrPasswordMismatch):
		return ui.Error.Sprint("✗") + " Passwords do not match"

	case errors.Is(err, kerrors.ErrPasswordTooShort):
		return ui.Error.Sprint("✗") + " " + err.Error()

	case errors.Is(err, kerrors.ErrInvalidToken):
		return ui.Error.Sprint("✗") + " That is not a recovery token\n" +
			ui.Info.Sprint("→") + " Tokens look like " + ui.Code.Sprint("XXXX-XXXX-XXXX-XXXX")

	case errors.Is(err, kerrors.ErrVaultBusy):
		return ui.Error.Sprint("✗") + " The vault is in use by another locker process\n" +
			ui.Info.Sprint("→") + " Wait for it to finish and try again"

	case errors.Is(err, kerrors.ErrFileNotFound):
		return ui.Error.Sprint("✗") + " " + err.Error() + "\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("locker list") + " to see stored files"

	case errors.Is(err, kerrors.ErrAmbiguousFile):
		return ui.Error.Sprint("✗") + " " + err.Error()

	case errors.Is(err, kerrors.ErrNoFilesFound):
		return ui.Error.Sprint("✗") + " No files to process"

	case errors.Is(err, kerrors.ErrIntegrity):
		return ui.Error.Sprint("✗") + " Integrity check failed: the file was damaged or tampered with\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, kerrors.ErrInvariantViolation):
		return ui.Error.Sprint("✗") + " The vault is read-only: some files do not match the current key\n" +
			ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("locker reconcile") + " to check them"

	case errors.Is(err, kerrors.ErrRotationAborted):
		return ui.Error.Sprint("✗") + " Rotation aborted, nothing was changed\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, kerrors.ErrInvalidConfig):
		return ui.Error.Sprint("✗") + " Invalid configuration\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	case errors.Is(err, kerrors.ErrResource):
		return ui.Error.Sprint("✗") + " A file operation failed\n" +
			ui.Error.Sprint("Error: ") + err.Error()

	default:
		return ui.Error.Sprint("✗") + " " + err.Error()
	}
}

// isUnexpectedError returns true if the error is unexpected and should cause a non-zero exit.
// Expected errors are user mistakes that formatError already explains.
func isUnexpectedError(err error) bool {
	switch {
	case errors.Is(err, kerrors.ErrVaultNotInitialized),
		errors.Is(err, kerrors.ErrVaultAlreadyInitialized),
		errors.Is(err, kerrors.ErrPasswordMismatch),
		errors.Is(err, kerrors.ErrPasswordTooShort),
		errors.Is(err, kerrors.ErrInvalidToken),
		errors.Is(err, kerrors.ErrFileNotFound),
		errors.Is(err, kerrors.ErrAmbiguousFile),
		errors.Is(err, kerrors.ErrNoFilesFound),
		errors.Is(err, kerrors.ErrInvalidDateFormat):
		return false
	default:
		return true
	}
}

// failWith sets the spinner's final message for err and returns the error
// the command should exit with.
func failWith(s *spinner.Spinner, err error) error {
	s.FinalMSG = formatError(err)
	if isUnexpectedError(err) {
		return err
	}
	return nil
}
