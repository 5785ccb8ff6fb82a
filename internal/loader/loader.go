package loader

import (
	"fmt"
	"os"
	"path/filepath"
)

// Handle is a loaded dynamic library mapped into the process.
type Handle interface {
	// Lookup resolves an exported symbol to its address.
	Lookup(symbol string) (uintptr, error)
	// Close unmaps the library from the process.
	Close() error
}

// Loader maps a library file into the process and resolves symbols.
// It is a black-box capability; tests substitute their own.
type Loader interface {
	Open(path string) (Handle, error)
}

// systemLoader is the platform dynamic loader. Its Open method is
// provided per-platform.
type systemLoader struct{}

// tempDirName is the well-known directory under the platform temp root
// holding all temporary library copies.
const tempDirName = "hotswap"

// DefaultTempDir returns the dedicated temp directory for library copies.
func DefaultTempDir() string {
	return filepath.Join(os.TempDir(), tempDirName)
}

// Option adjusts loading behavior.
type Option func(*settings)

type settings struct {
	loader  Loader
	tempDir string
}

func newSettings(opts []Option) settings {
	cfg := settings{
		loader:  systemLoader{},
		tempDir: DefaultTempDir(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// WithLoader substitutes the dynamic-loader primitive.
func WithLoader(l Loader) Option {
	return func(s *settings) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithTempDir overrides the directory holding temporary library copies.
func WithTempDir(dir string) Option {
	return func(s *settings) {
		if dir != "" {
			s.tempDir = dir
		}
	}
}

// LibraryError reports a failure of the dynamic-loader primitive, as
// opposed to an I/O failure preparing the file it maps.
type LibraryError struct {
	// Path is the file the loader attempted to map.
	Path string
	// Err is the underlying loader error.
	Err error
}

// Error renders the failing path and cause.
func (e *LibraryError) Error() string {
	return fmt.Sprintf("load library %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying loader error.
func (e *LibraryError) Unwrap() error {
	return e.Err
}
