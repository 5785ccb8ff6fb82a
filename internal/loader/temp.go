package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gosimple/slug"

	"github.com/oshokin/hotswap/internal/logger"
	"github.com/oshokin/hotswap/internal/platform"
)

// ErrLibraryReleased is returned when a symbol is requested from a
// TempLibrary whose teardown has already run.
var ErrLibraryReleased = errors.New("library already released")

// copyFileMode is the permission applied to temporary library copies.
const copyFileMode os.FileMode = 0o755

// TempLibrary is a loaded temporary copy of a built library. The backing
// file at Path exists and stays loadable for the handle's whole lifetime.
// Close runs the teardown exactly once: the mapping is released first,
// then the file is removed best-effort.
type TempLibrary struct {
	buildTimestamp time.Time
	path           string

	mu sync.Mutex
	// handle is non-nil until teardown begins; taking it under the mutex
	// makes double teardown a natural no-op.
	handle Handle
}

// Load copies the artifact into the temp directory under a name unique to
// (libName, buildTimestamp) and maps the copy. Loading the same build
// twice is idempotent: the copy is skipped when the destination exists and
// a second independent handle over the same bytes is returned.
func Load(ctx context.Context, artifactPath, libName string, buildTimestamp time.Time, opts ...Option) (*TempLibrary, error) {
	cfg := newSettings(opts)
	dest := filepath.Join(cfg.tempDir, tempFileName(libName, buildTimestamp))

	if err := ensureCopied(artifactPath, dest); err != nil {
		return nil, err
	}

	runFixup(ctx, dest)

	handle, err := cfg.loader.Open(dest)
	if err != nil {
		return nil, &LibraryError{Path: dest, Err: err}
	}

	logger.DebugKV(ctx, "Loaded temporary library", "path", dest)

	return &TempLibrary{
		buildTimestamp: buildTimestamp,
		path:           dest,
		handle:         handle,
	}, nil
}

// LoadArtifact loads a pre-existing artifact, deriving the build timestamp
// from the file's metadata for temp naming.
func LoadArtifact(ctx context.Context, artifactPath, libName string, opts ...Option) (*TempLibrary, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("artifact metadata: %w", err)
	}

	timestamp := info.ModTime()
	if timestamp.IsZero() {
		return nil, fmt.Errorf("artifact %s: no usable build timestamp", artifactPath)
	}

	return Load(ctx, artifactPath, libName, timestamp, opts...)
}

// LoadInPlace maps the artifact at its original build location, skipping
// the temp copy. This is cheaper but forfeits concurrent-reload safety:
// the caller must drop any handle from a previous in-place load of the
// same location before rebuilding.
func LoadInPlace(artifactPath string, opts ...Option) (Handle, error) {
	cfg := newSettings(opts)

	handle, err := cfg.loader.Open(artifactPath)
	if err != nil {
		return nil, &LibraryError{Path: artifactPath, Err: err}
	}

	return handle, nil
}

// tempFileName derives the unique copy name for one build:
// <platform stem>-<timestamp slug>.<platform extension>. Nanosecond
// timestamp resolution keeps sub-second rebuilds distinct.
func tempFileName(libName string, buildTimestamp time.Time) string {
	stem := platform.FileStem(runtime.GOOS, libName)
	timestampSlug := slug.Make(buildTimestamp.UTC().Format(time.RFC3339Nano))

	return stem + "-" + timestampSlug + "." + platform.DylibExt(runtime.GOOS)
}

// ensureCopied publishes the artifact bytes at dest atomically. An
// existing destination means the build was already copied and is reused
// as-is; otherwise the bytes go to a staging file first and are renamed
// into place, so a partially written destination is never observable.
func ensureCopied(src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat temporary library: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create temp directory: %w", err)
	}

	stage := dest + ".stage-" + strconv.Itoa(os.Getpid())
	if err := copyFile(src, stage); err != nil {
		_ = os.Remove(stage)
		return err
	}

	if err := os.Rename(stage, dest); err != nil {
		_ = os.Remove(stage)

		// A concurrent loader of the same build may have published first.
		if _, statErr := os.Stat(dest); statErr == nil {
			return nil
		}

		return fmt.Errorf("publish temporary library: %w", err)
	}

	return nil
}

// copyFile copies src to dst with executable permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, copyFileMode)
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("flush staging file: %w", err)
	}

	return nil
}

// runFixup applies the platform's post-copy fixup. Failure is logged and
// never fatal: the fixup improves reload reliability but is not a
// precondition of mapping the file.
func runFixup(ctx context.Context, dest string) {
	args := platform.FixupCommand(runtime.GOOS, filepath.Base(dest))
	if args == nil {
		return
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Dir(dest)

	if output, err := cmd.CombinedOutput(); err != nil {
		logger.WarnKV(ctx, "Post-copy fixup failed, loading anyway",
			"command", args[0], "error", err, "output", string(output))
	}
}

// Handle returns the loaded-library handle, or nil after teardown.
func (t *TempLibrary) Handle() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.handle
}

// Lookup resolves an exported symbol of the loaded library.
func (t *TempLibrary) Lookup(symbol string) (uintptr, error) {
	handle := t.Handle()
	if handle == nil {
		return 0, ErrLibraryReleased
	}

	return handle.Lookup(symbol)
}

// Path returns the location of the temporary library copy.
func (t *TempLibrary) Path() string {
	return t.path
}

// BuildTimestamp returns the completion time of the build this copy came from.
func (t *TempLibrary) BuildTimestamp() time.Time {
	return t.buildTimestamp
}

// Close releases the library and then removes the backing file. The
// mapping must be gone before the unlink: removing a file that is still
// mapped is undefined on some platforms. Removal failures are swallowed;
// cleanup is advisory. Calling Close again is a no-op.
func (t *TempLibrary) Close() error {
	t.mu.Lock()
	handle := t.handle
	t.handle = nil
	t.mu.Unlock()

	if handle == nil {
		return nil
	}

	err := handle.Close()

	_ = os.Remove(t.path)

	return err
}
