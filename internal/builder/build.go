package builder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/oshokin/hotswap/internal/logger"
	"github.com/oshokin/hotswap/internal/platform"
)

// releaseDir is the profile subdirectory of the build-output directory
// holding the built artifact.
const releaseDir = "release"

// Result is an immutable record of one completed build. Results are cheap
// to copy and multiple Results for the same library may coexist, each
// independently loadable.
type Result struct {
	// LibName is the name of the built dylib target.
	LibName string
	// TargetDir is the build-output directory.
	TargetDir string
	// Timestamp is the moment the build completed. It keys the temporary
	// filename derived by the loader, so distinct builds never collide.
	Timestamp time.Time
	// Stdout is the raw standard output of the build process.
	Stdout []byte
	// Stderr is the raw standard error of the build process.
	Stderr []byte
}

// Build compiles the package's dylib target in release mode and stamps the
// completion time. A non-zero exit surfaces as *ExitStatusError; no retry
// is attempted, retry policy belongs to the caller.
func (p *Package) Build(ctx context.Context) (*Result, error) {
	logger.InfoKV(ctx, "Building library", "lib_name", p.libName, "manifest", p.manifestPath)

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, p.cargo,
		"build",
		"--manifest-path", p.manifestPath,
		"--lib",
		"--release")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("build library: %w", exitStatusError(err, stderr.Bytes()))
	}

	return &Result{
		LibName:   p.libName,
		TargetDir: p.targetDir,
		Timestamp: time.Now(),
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
	}, nil
}

// ArtifactPath returns the location of the built dynamic library for the
// current platform.
func (r *Result) ArtifactPath() string {
	stem := platform.FileStem(runtime.GOOS, r.LibName)
	ext := platform.DylibExt(runtime.GOOS)

	return filepath.Join(r.TargetDir, releaseDir, stem+"."+ext)
}
