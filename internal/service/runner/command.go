package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/hotswap/internal/builder"
	"github.com/oshokin/hotswap/internal/config"
	"github.com/oshokin/hotswap/internal/loader"
	"github.com/oshokin/hotswap/internal/logger"
	"github.com/oshokin/hotswap/internal/watcher"
)

// Options controls a single runner session.
type Options struct {
	// ManifestPath points at the build manifest of the watched package.
	ManifestPath string
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Once performs the initial build and load, then exits without watching.
	Once bool
	// InPlace loads the artifact at its build location instead of a temp
	// copy. Cheaper, but the previous mapping is dropped before every
	// rebuild instead of surviving it.
	InPlace bool
	// Cargo optionally overrides the build-tool executable.
	Cargo string
	// Loader optionally substitutes the dynamic-loader primitive.
	Loader loader.Loader
}

// MarkerFilename marks that a runner is active in this working directory
// to avoid parallel sessions fighting over the same package.
const MarkerFilename = "hotswap-run-marker.bin"

// markerLifetime is the period after which a stale runner marker is ignored.
const markerLifetime = 30 * time.Second

// errRunnerAlreadyActive indicates another runner owns this working directory.
var errRunnerAlreadyActive = errors.New("another runner is already active")

// Run executes the runner lifecycle: initial build and load, then a
// rebuild-and-reload on every worthy source change until the context ends.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "hotswap-runner")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	if isRunnerActiveNow(ctx) {
		return errRunnerAlreadyActive
	}

	if err = writeMarker(); err != nil {
		return fmt.Errorf("write runner marker: %w", err)
	}

	defer func() {
		_ = os.Remove(MarkerFilename)
	}()

	session, err := watcher.Watch(ctx, opts.ManifestPath, builder.WithCargo(opts.Cargo))
	if err != nil {
		return err
	}

	defer func() {
		_ = session.Close()
	}()

	// Force an initial build before any file change has occurred.
	current, err := buildAndLoad(ctx, session.Package(), cfg, opts)
	if err != nil {
		return err
	}

	defer func() {
		current.close(ctx)
	}()

	if opts.Once {
		return nil
	}

	for {
		pkg, err := session.Next(ctx)

		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case errors.Is(err, watcher.ErrChannelClosed):
			// The subscription died; the session cannot recover.
			return err
		case err != nil:
			logger.ErrorKV(ctx, "Watch error, event dropped", "error", err)
			continue
		}

		if opts.InPlace {
			// An in-place mapping must be gone before its file is rebuilt.
			current.close(ctx)
		}

		next, err := buildAndLoad(ctx, pkg, cfg, opts)
		if err != nil {
			logger.ErrorKV(ctx, "Rebuild failed, waiting for next change", "error", err)
			continue
		}

		// The old copy stays mapped until the replacement is live.
		current.close(ctx)
		current = next
	}
}

// loadedModule is whichever flavor of handle the session currently holds.
type loadedModule struct {
	temp    *loader.TempLibrary
	inPlace loader.Handle
}

// lookup resolves a symbol on the active handle.
func (m *loadedModule) lookup(symbol string) (uintptr, error) {
	if m.temp != nil {
		return m.temp.Lookup(symbol)
	}

	if m.inPlace != nil {
		return m.inPlace.Lookup(symbol)
	}

	return 0, loader.ErrLibraryReleased
}

// close releases the handle. Safe to call repeatedly.
func (m *loadedModule) close(ctx context.Context) {
	if m == nil {
		return
	}

	if m.temp != nil {
		if err := m.temp.Close(); err != nil {
			logger.WarnKV(ctx, "Unload failed", "path", m.temp.Path(), "error", err)
		}

		m.temp = nil
	}

	if m.inPlace != nil {
		if err := m.inPlace.Close(); err != nil {
			logger.WarnKV(ctx, "Unload failed", "error", err)
		}

		m.inPlace = nil
	}
}

// buildAndLoad compiles the package and loads the fresh artifact,
// verifying the configured entry symbol when one is set.
func buildAndLoad(ctx context.Context, pkg *builder.Package, cfg *config.Config, opts *Options) (*loadedModule, error) {
	buildCtx, cancel := context.WithTimeout(ctx, cfg.BuildTimeout)
	defer cancel()

	result, err := pkg.Build(buildCtx)
	if err != nil {
		return nil, err
	}

	loaderOpts := []loader.Option{
		loader.WithLoader(opts.Loader),
		loader.WithTempDir(cfg.TempDir),
	}

	module := new(loadedModule)

	if opts.InPlace {
		handle, err := loader.LoadInPlace(result.ArtifactPath(), loaderOpts...)
		if err != nil {
			return nil, err
		}

		module.inPlace = handle

		logger.InfoKV(ctx, "Loaded library in place", "path", result.ArtifactPath())
	} else {
		lib, err := loader.Load(ctx, result.ArtifactPath(), result.LibName, result.Timestamp, loaderOpts...)
		if err != nil {
			return nil, err
		}

		module.temp = lib

		logger.InfoKV(ctx, "Loaded library",
			"path", lib.Path(), "build_timestamp", lib.BuildTimestamp().Format(time.RFC3339Nano))
	}

	if cfg.EntrySymbol != "" {
		if _, err := module.lookup(cfg.EntrySymbol); err != nil {
			logger.WarnKV(ctx, "Entry symbol not resolvable", "symbol", cfg.EntrySymbol, "error", err)
		}
	}

	return module, nil
}

// writeMarker creates the single-instance marker file.
func writeMarker() error {
	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return err
	}

	return marker.Close()
}
