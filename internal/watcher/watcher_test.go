package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/hotswap/internal/builder"
)

// newTestSession builds a session backed by a bare queue so filter and
// delivery semantics are testable without a live subscription.
func newTestSession() *Session {
	return &Session{
		pkg:   new(builder.Package),
		queue: newEventQueue(),
	}
}

// TestNext_FiltersUnworthy replays [other, modify, other] and expects
// exactly one wake-up, triggered by the single modification.
func TestNext_FiltersUnworthy(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.queue.push(queueItem{event: RawEvent{Kind: KindOther, Path: "src/lib.rs"}})
	s.queue.push(queueItem{event: RawEvent{Kind: KindModify, Path: "src/lib.rs"}})
	s.queue.push(queueItem{event: RawEvent{Kind: KindOther, Path: "src/lib.rs"}})

	pkg, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Same(t, s.pkg, pkg)

	// The trailing unworthy event must not satisfy another wait.
	pkg, err = s.TryNext()
	require.NoError(t, err)
	require.Nil(t, pkg)
}

// TestNext_ChannelClosed reports a dead event stream as ErrChannelClosed,
// after delivering whatever was still buffered.
func TestNext_ChannelClosed(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	s.queue.push(queueItem{event: RawEvent{Kind: KindCreate, Path: "src/new.rs"}})
	s.queue.close()

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrChannelClosed)

	_, err = s.TryNext()
	require.ErrorIs(t, err, ErrChannelClosed)
}

// TestNext_ContextCanceled unblocks a pending wait on cancellation.
func TestNext_ContextCanceled(t *testing.T) {
	t.Parallel()

	s := newTestSession()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.Next(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not observe cancellation")
	}
}

// TestNext_PrimitiveError surfaces a per-event watch error without
// killing the session.
func TestNext_PrimitiveError(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	watchErr := errors.New("inotify queue overflow")
	s.queue.push(queueItem{err: watchErr})
	s.queue.push(queueItem{event: RawEvent{Kind: KindModify, Path: "src/lib.rs"}})

	_, err := s.Next(context.Background())
	require.ErrorIs(t, err, watchErr)

	// The session keeps working after the error.
	pkg, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Same(t, s.pkg, pkg)
}

// TestNext_Ordering preserves emission order across a burst.
func TestNext_Ordering(t *testing.T) {
	t.Parallel()

	s := newTestSession()
	for i := 0; i < 5; i++ {
		s.queue.push(queueItem{event: RawEvent{Kind: KindModify, Path: fmt.Sprintf("src/%d.rs", i)}})
	}

	for i := 0; i < 5; i++ {
		it, err := s.queue.recv(context.Background())
		require.NoError(t, err)
		require.True(t, IsRebuildWorthy(it.event))
	}
}

// TestWatch_InvalidManifest rejects paths not ending in the manifest name
// before touching the build tool or the filesystem.
func TestWatch_InvalidManifest(t *testing.T) {
	t.Parallel()

	_, err := Watch(context.Background(), filepath.Join(t.TempDir(), "package.toml"))
	require.ErrorIs(t, err, ErrInvalidManifestPath)
}

// TestWatch_NoDylibTarget fails session setup when the metadata declares
// no dynamically-loadable target.
func TestWatch_NoDylibTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	tool := writeFakeMetadataTool(t, manifest, dir, "bin")

	_, err := Watch(context.Background(), manifest, builder.WithCargo(tool))
	require.ErrorIs(t, err, builder.ErrNoDylibTarget)
}

// TestWatch_DeliversChange runs a real subscription: a source write wakes
// a pending Next exactly once.
func TestWatch_DeliversChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	manifest := filepath.Join(dir, "Cargo.toml")
	tool := writeFakeMetadataTool(t, manifest, dir, "dylib")

	s, err := Watch(context.Background(), manifest, builder.WithCargo(tool))
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	done := make(chan error, 1)
	go func() {
		_, nextErr := s.Next(context.Background())
		done <- nextErr
	}()

	// Give the pending Next a moment to park, then touch a source file.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "lib.rs"), []byte("pub fn f() {}"), 0o644))

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Next was not woken by a source change")
	}
}

// writeFakeMetadataTool writes a build-tool stand-in whose metadata command
// describes a single package rooted at dir with one target of the given kind.
func writeFakeMetadataTool(t *testing.T, manifest, dir, kind string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake build tool is a shell script")
	}

	doc := fmt.Sprintf(`{
  "target_directory": %q,
  "packages": [
    {
      "manifest_path": %q,
      "targets": [
        {"kind": [%q], "name": "foo", "src_path": %q}
      ]
    }
  ]
}`, filepath.Join(dir, "target"), manifest, kind, filepath.Join(dir, "src", "lib.rs"))

	path := filepath.Join(t.TempDir(), "cargo")
	script := fmt.Sprintf("#!/bin/sh\ncat <<'METADATA'\n%s\nMETADATA\n", doc)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	return path
}
