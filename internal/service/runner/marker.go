package runner

import (
	"context"
	"errors"
	"os"
	"runtime"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/hotswap/internal/logger"
)

// baseRunnerExecutable is the runner binary name; the platform helper
// appends the extension when needed.
const baseRunnerExecutable = "hotswap-runner"

// isRunnerActiveNow checks presence of a marker file and attempts recovery
// when it looks stale.
func isRunnerActiveNow(ctx context.Context) bool {
	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The runner marker is too old, attempting cleanup")

		if err = terminateProcessByName(runnerExecutable()); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Infof(ctx, "Unable to read runner marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}

// runnerExecutable returns the runner binary name for this platform.
func runnerExecutable() string {
	if runtime.GOOS == "windows" {
		return baseRunnerExecutable + ".exe"
	}

	return baseRunnerExecutable
}
