package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/oshokin/hotswap/internal/builder"
	"github.com/oshokin/hotswap/internal/logger"
)

var (
	// ErrInvalidManifestPath is returned when the watched path does not end
	// with the build-manifest filename.
	ErrInvalidManifestPath = fmt.Errorf("invalid path: expected path to end with %q", builder.ManifestFilename)

	// ErrChannelClosed signals that the filesystem event stream died.
	// The session is unusable afterwards and must be recreated.
	ErrChannelClosed = errors.New("the channel used to receive file system events was closed")
)

// Session owns one live filesystem subscription over a package's source
// directory and exposes pull-style waiting for rebuild-worthy changes.
type Session struct {
	pkg   *builder.Package
	fs    *fsnotify.Watcher
	queue *eventQueue
}

// Watch validates the manifest path, resolves the package's dylib target
// from build-tool metadata and starts watching its source tree recursively.
// All setup failures are fatal; no subscription is left behind on error.
func Watch(ctx context.Context, manifestPath string, opts ...builder.Option) (*Session, error) {
	if !hasManifestSuffix(manifestPath) {
		return nil, ErrInvalidManifestPath
	}

	pkg, err := builder.ResolvePackage(ctx, manifestPath, opts...)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("construct filesystem watcher: %w", err)
	}

	if err = addRecursive(fsw, pkg.SrcDir()); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch source directory: %w", err)
	}

	session := &Session{
		pkg:   pkg,
		fs:    fsw,
		queue: newEventQueue(),
	}

	go session.forward(ctx)

	logger.InfoKV(ctx, "Watching package sources",
		"lib_name", pkg.LibName(), "src_dir", pkg.SrcDir())

	return session, nil
}

// hasManifestSuffix accepts the canonical manifest filename in any case
// matching the build tool's own tolerance.
func hasManifestSuffix(path string) bool {
	base := filepath.Base(path)

	return base == builder.ManifestFilename ||
		base == strings.ToLower(builder.ManifestFilename)
}

// addRecursive registers the directory and every subdirectory with the
// watch primitive, which only watches single directories natively.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		return fsw.Add(path)
	})
}

// forward pumps the subscription's channels into the session queue from
// the primitive's own goroutine context. Newly created directories are
// added to the subscription so the watch stays recursive.
func (s *Session) forward(ctx context.Context) {
	defer s.queue.close()

	for {
		select {
		case event, ok := <-s.fs.Events:
			if !ok {
				return
			}

			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err = s.fs.Add(event.Name); err != nil {
						logger.WarnKV(ctx, "Unable to watch new directory",
							"path", event.Name, "error", err)
					}
				}
			}

			s.queue.push(queueItem{event: RawEvent{
				Kind: kindFromOp(event.Op),
				Path: event.Name,
			}})
		case err, ok := <-s.fs.Errors:
			if !ok {
				return
			}

			s.queue.push(queueItem{err: err})
		}
	}
}

// Next blocks until a rebuild-worthy event arrives, then returns the
// package descriptor. Per-event watch-primitive errors are returned
// wrapped and drop only the triggering event; the session stays usable.
// A closed event stream yields ErrChannelClosed.
func (s *Session) Next(ctx context.Context) (*builder.Package, error) {
	for {
		it, err := s.queue.recv(ctx)
		if err != nil {
			return nil, err
		}

		if it.err != nil {
			return nil, fmt.Errorf("watch primitive error: %w", it.err)
		}

		if IsRebuildWorthy(it.event) {
			logger.DebugKV(ctx, "Rebuild-worthy change",
				"kind", it.event.Kind.String(), "path", it.event.Path)

			return s.pkg, nil
		}
	}
}

// TryNext drains currently buffered events without blocking and returns
// the package descriptor for the first rebuild-worthy one, or nil when
// nothing buffered qualifies. Failure modes match Next.
func (s *Session) TryNext() (*builder.Package, error) {
	for {
		it, ok, err := s.queue.tryRecv()
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, nil //nolint:nilnil // "no pending signal" is a valid non-error outcome
		}

		if it.err != nil {
			return nil, fmt.Errorf("watch primitive error: %w", it.err)
		}

		if IsRebuildWorthy(it.event) {
			return s.pkg, nil
		}
	}
}

// Package returns the current package descriptor without consulting the
// event stream. Useful for forcing an initial build before any change.
func (s *Session) Package() *builder.Package {
	return s.pkg
}

// Close tears down the subscription. The forwarder drains and closes the
// queue, after which pending and future waits fail with ErrChannelClosed.
func (s *Session) Close() error {
	return s.fs.Close()
}
