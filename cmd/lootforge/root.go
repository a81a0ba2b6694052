package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Someblueman/lootforge/internal/config"
)

var (
	verbose      bool
	manifestPath string
	outputRoot   string
	configPath   string
	providerFlag string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lootforge",
	Short: "lootforge - a build pipeline for game asset packs",
	Long: `lootforge drives declared asset targets through plan, generate,
process, eval, select, regenerate, and package stages, writing a versioned
JSON contract document at every stage boundary.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if outputRoot == "" {
			outputRoot = cfg.Service.Out
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "manifest", "m", "assets/imagegen/manifest.json", "path to the manifest document")
	rootCmd.PersistentFlags().StringVarP(&outputRoot, "out", "o", "", "output root (default: config service.out)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a lootforge config YAML file")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "override the routed provider for this invocation")

	rootCmd.AddCommand(
		initCmd,
		planCmd,
		validateCmd,
		generateCmd,
		processCmd,
		evalCmd,
		selectCmd,
		regenerateCmd,
		atlasCmd,
		reviewCmd,
		packageCmd,
		serveCmd,
	)
}

func exitStage(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
