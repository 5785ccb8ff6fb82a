package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFakeTool writes an executable shell script standing in for the build tool.
func writeFakeTool(t *testing.T, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake build tool is a shell script")
	}

	path := filepath.Join(t.TempDir(), "cargo")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	return path
}

// metadataScript renders a fake metadata command emitting the given JSON.
func metadataScript(doc string) string {
	return fmt.Sprintf("cat <<'METADATA'\n%s\nMETADATA", doc)
}

// metadataJSON renders a single-package metadata document.
func metadataJSON(manifestPath, targetDir, kind, name, srcPath string) string {
	return fmt.Sprintf(`{
  "target_directory": %q,
  "packages": [
    {
      "manifest_path": %q,
      "targets": [
        {"kind": [%q], "name": %q, "src_path": %q}
      ]
    }
  ]
}`, targetDir, manifestPath, kind, name, srcPath)
}

// TestResolvePackage extracts the dylib target from metadata output.
func TestResolvePackage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	srcPath := filepath.Join(dir, "src", "lib.rs")
	targetDir := filepath.Join(dir, "target")

	tool := writeFakeTool(t, metadataScript(metadataJSON(manifest, targetDir, "dylib", "foo", srcPath)))

	pkg, err := ResolvePackage(context.Background(), manifest, WithCargo(tool))
	require.NoError(t, err)
	require.Equal(t, manifest, pkg.ManifestPath())
	require.Equal(t, filepath.Join(dir, "src"), pkg.SrcDir())
	require.Equal(t, "foo", pkg.LibName())
	require.Equal(t, targetDir, pkg.TargetDir())
}

// TestResolvePackage_NoDylibTarget fails with ErrNoDylibTarget when the
// package declares no dynamically-loadable output.
func TestResolvePackage_NoDylibTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")

	tool := writeFakeTool(t, metadataScript(
		metadataJSON(manifest, filepath.Join(dir, "target"), "bin", "foo", filepath.Join(dir, "src", "main.rs"))))

	_, err := ResolvePackage(context.Background(), manifest, WithCargo(tool))
	require.ErrorIs(t, err, ErrNoDylibTarget)
}

// TestResolvePackage_BadJSON surfaces unparsable metadata output.
func TestResolvePackage_BadJSON(t *testing.T) {
	t.Parallel()

	tool := writeFakeTool(t, `echo "not json"`)

	_, err := ResolvePackage(context.Background(), "Cargo.toml", WithCargo(tool))
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode package metadata")
}

// TestResolvePackage_ExitStatus converts a non-zero metadata exit into ExitStatusError.
func TestResolvePackage_ExitStatus(t *testing.T) {
	t.Parallel()

	tool := writeFakeTool(t, `echo "manifest rejected" >&2; exit 7`)

	_, err := ResolvePackage(context.Background(), "Cargo.toml", WithCargo(tool))

	var exitErr *ExitStatusError
	require.ErrorAs(t, err, &exitErr)
	require.True(t, exitErr.Exited)
	require.Equal(t, 7, exitErr.Code)
	require.Contains(t, exitErr.Stderr, "manifest rejected")
}

// TestResolvePackage_MissingTool surfaces a start failure distinct from an exit failure.
func TestResolvePackage_MissingTool(t *testing.T) {
	t.Parallel()

	_, err := ResolvePackage(context.Background(), "Cargo.toml",
		WithCargo(filepath.Join(t.TempDir(), "no-such-tool")))
	require.Error(t, err)

	var exitErr *ExitStatusError
	require.False(t, errors.As(err, &exitErr))
}
