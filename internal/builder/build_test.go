package builder

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/hotswap/internal/platform"
)

// buildToolScript renders a fake tool answering both metadata and build subcommands.
func buildToolScript(metadataJSON, buildBranch string) string {
	return fmt.Sprintf(`case "$1" in
metadata)
cat <<'METADATA'
%s
METADATA
;;
build)
%s
;;
esac`, metadataJSON, buildBranch)
}

// resolveWithFakeTool prepares a Package backed by the given build branch.
func resolveWithFakeTool(t *testing.T, buildBranch string) *Package {
	t.Helper()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	doc := metadataJSON(manifest, filepath.Join(dir, "target"), "dylib", "foo", filepath.Join(dir, "src", "lib.rs"))
	tool := writeFakeTool(t, buildToolScript(doc, buildBranch))

	pkg, err := ResolvePackage(context.Background(), manifest, WithCargo(tool))
	require.NoError(t, err)

	return pkg
}

// TestBuild_Success stamps the completion time and captures process output.
func TestBuild_Success(t *testing.T) {
	t.Parallel()

	pkg := resolveWithFakeTool(t, `echo "Compiling foo"; echo "Finished release" >&2`)

	res, err := pkg.Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, "foo", res.LibName)
	require.False(t, res.Timestamp.IsZero())
	require.Contains(t, string(res.Stdout), "Compiling foo")
	require.Contains(t, string(res.Stderr), "Finished release")
}

// TestBuild_ExitStatus carries the exit code and stderr text verbatim.
func TestBuild_ExitStatus(t *testing.T) {
	t.Parallel()

	pkg := resolveWithFakeTool(t, `echo "error[E0308]" >&2; exit 101`)

	_, err := pkg.Build(context.Background())

	var exitErr *ExitStatusError
	require.ErrorAs(t, err, &exitErr)
	require.True(t, exitErr.Exited)
	require.Equal(t, 101, exitErr.Code)
	require.Contains(t, exitErr.Stderr, "error[E0308]")
}

// TestResult_ArtifactPath follows the platform naming convention under release/.
func TestResult_ArtifactPath(t *testing.T) {
	t.Parallel()

	res := &Result{LibName: "foo", TargetDir: filepath.Join("/tmp", "proj", "target")}

	stem := platform.FileStem(runtime.GOOS, "foo")
	ext := platform.DylibExt(runtime.GOOS)
	require.Equal(t,
		filepath.Join("/tmp", "proj", "target", "release", stem+"."+ext),
		res.ArtifactPath())
}
