package builder

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrNoDylibTarget is returned when the package metadata contains no target
// built as a dynamically-loadable library.
var ErrNoDylibTarget = errors.New("no dylib targets were found within the package")

// ExitStatusError reports a build-tool process that finished unsuccessfully.
type ExitStatusError struct {
	// Code is the process exit code. It is meaningful only when Exited is true.
	Code int
	// Exited is false when the process was terminated abnormally
	// (for example by a signal) rather than exiting on its own.
	Exited bool
	// Stderr is the captured standard error output of the process.
	Stderr string
}

// Error renders the exit status and captured stderr.
func (e *ExitStatusError) Error() string {
	if !e.Exited {
		return fmt.Sprintf("build tool terminated abnormally: %s", e.Stderr)
	}

	return fmt.Sprintf("build tool exited with status code %d: %s", e.Code, e.Stderr)
}

// exitStatusError converts an *exec.ExitError into an *ExitStatusError,
// passing any other error through unchanged.
func exitStatusError(err error, stderr []byte) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return err
	}

	return &ExitStatusError{
		Code:   exitErr.ExitCode(),
		Exited: exitErr.ProcessState.Exited(),
		Stderr: string(stderr),
	}
}
