package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
)

const (
	// ManifestFilename is the build-manifest name a watched path must end with.
	ManifestFilename = "Cargo.toml"

	// DefaultCargo is the build-tool executable looked up on PATH.
	DefaultCargo = "cargo"

	// dylibTargetKind tags targets producing a dynamically-loadable library.
	dylibTargetKind = "dylib"
)

// Option adjusts how the build tool is invoked.
type Option func(*settings)

type settings struct {
	cargo string
}

// WithCargo overrides the build-tool executable. Used by tests and callers
// that pin a specific toolchain.
func WithCargo(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.cargo = path
		}
	}
}

// Package describes a package's dylib target as discovered from build-tool
// metadata. It is immutable for the lifetime of a watch session.
type Package struct {
	manifestPath string
	srcDir       string
	libName      string
	targetDir    string
	cargo        string
}

// ManifestPath returns the path to the package's build manifest.
func (p *Package) ManifestPath() string { return p.manifestPath }

// SrcDir returns the source directory to watch for changes.
func (p *Package) SrcDir() string { return p.srcDir }

// LibName returns the name of the dylib target.
func (p *Package) LibName() string { return p.libName }

// TargetDir returns the build-output directory.
func (p *Package) TargetDir() string { return p.targetDir }

// metadataDoc mirrors the subset of `cargo metadata` JSON the resolver needs.
type metadataDoc struct {
	TargetDirectory string            `json:"target_directory"`
	Packages        []metadataPackage `json:"packages"`
}

type metadataPackage struct {
	ManifestPath string           `json:"manifest_path"`
	Targets      []metadataTarget `json:"targets"`
}

type metadataTarget struct {
	Kind    []string `json:"kind"`
	Name    string   `json:"name"`
	SrcPath string   `json:"src_path"`
}

// ResolvePackage invokes the build tool's metadata command for the given
// manifest and extracts the first dylib target declared by the matching
// package. It fails with ErrNoDylibTarget when no such target exists.
func ResolvePackage(ctx context.Context, manifestPath string, opts ...Option) (*Package, error) {
	cfg := settings{cargo: DefaultCargo}
	for _, opt := range opts {
		opt(&cfg)
	}

	stdout, err := runTool(ctx, cfg.cargo,
		"metadata",
		"--manifest-path", manifestPath,
		"--format-version", "1",
		"--no-deps")
	if err != nil {
		return nil, fmt.Errorf("resolve package metadata: %w", err)
	}

	var doc metadataDoc
	if err = json.Unmarshal(stdout, &doc); err != nil {
		return nil, fmt.Errorf("decode package metadata: %w", err)
	}

	target, err := findDylibTarget(&doc, manifestPath)
	if err != nil {
		return nil, err
	}

	return &Package{
		manifestPath: manifestPath,
		srcDir:       filepath.Dir(target.SrcPath),
		libName:      target.Name,
		targetDir:    doc.TargetDirectory,
		cargo:        cfg.cargo,
	}, nil
}

// findDylibTarget locates the dylib target of the package whose manifest
// matches the requested one.
func findDylibTarget(doc *metadataDoc, manifestPath string) (*metadataTarget, error) {
	want := filepath.Clean(manifestPath)

	for i := range doc.Packages {
		pkg := &doc.Packages[i]
		if filepath.Clean(pkg.ManifestPath) != want {
			continue
		}

		for j := range pkg.Targets {
			target := &pkg.Targets[j]
			for _, kind := range target.Kind {
				if kind == dylibTargetKind {
					return target, nil
				}
			}
		}
	}

	return nil, ErrNoDylibTarget
}

// runTool executes the build tool with the given arguments and returns its
// standard output. Non-zero exits surface as *ExitStatusError carrying the
// captured stderr.
func runTool(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, exitStatusError(err, stderr.Bytes())
	}

	return stdout.Bytes(), nil
}
