package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/hotswap/internal/config"
	"github.com/oshokin/hotswap/internal/service/runner"
	"github.com/oshokin/hotswap/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// once performs a single build-and-load cycle without watching.
	once bool
	// inPlace loads the artifact at its build location instead of a temp copy.
	inPlace bool
	// cargoPath optionally overrides the build-tool executable.
	cargoPath string

	// rootCmd represents the base command watching and reloading a library.
	rootCmd = &cobra.Command{
		Use:   "hotswap-runner <manifest-path>",
		Short: "Watch, rebuild and hot-reload a dynamic library.",
		Long: `Watches a package's source directory and rebuilds its dynamic library
on every change, loading each fresh build through a uniquely named temporary
copy so previously loaded versions stay valid while the original artifact is
overwritten.

The manifest-path argument must point to the package's Cargo.toml. The initial
build runs immediately, before any file change has occurred.

With --in-place the temporary copy is skipped: cheaper, but the previous
mapping is released before every rebuild instead of surviving it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			runnerOptions := &runner.Options{
				ManifestPath: args[0],
				ConfigPath:   configPath,
				Once:         once,
				InPlace:      inPlace,
				Cargo:        cargoPath,
			}

			return runner.Run(ctx, runnerOptions)
		},
	}
)

// Execute runs the hotswap-runner CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().BoolVarP(&once, "once", "o", false, "build and load once, then exit")
	rootCmd.Flags().BoolVar(&inPlace, "in-place", false, "load the artifact where it was built, skipping the temp copy")

	// Hidden build-tool override for development and testing.
	rootCmd.Flags().StringVar(&cargoPath, "cargo", "", "path to the build-tool executable")

	err := rootCmd.Flags().MarkHidden("cargo")
	if err != nil {
		panic(err)
	}
}
