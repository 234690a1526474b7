package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"visra.app/studio/internal/app"
	"visra.app/studio/internal/config"
	"visra.app/studio/pkg/logger"
)

var (
	verbose bool
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "visra",
	Short: "Work with the Visra interior-design workspace from the terminal",
	Long: `Visra redesigns interior photos with a generative model.

The CLI works on the same database as the workspace server:
  visra sessions list                     # List saved design sessions
  visra sessions export <id> --format yaml
  visra send "Make it cozy" --image room.jpg
  visra mask --image room.jpg --strokes strokes.json --out mask.png`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		log, err := logger.New(logger.Options{Level: level, Output: "stderr", Console: true})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.SetGlobal(log)
		return nil
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Workspace database (defaults to DATABASE_URL)")
}

// loadConfig reads the environment and applies the --db override.
func loadConfig() *config.Config {
	cfg, _ := config.Load()
	if dbPath != "" {
		cfg.DatabaseURL = dbPath
	}
	return cfg
}

func openWorkspace() (*app.Workspace, *config.Config, error) {
	cfg := loadConfig()
	ws, err := app.OpenWorkspace(cfg, logger.Global())
	if err != nil {
		return nil, nil, err
	}
	return ws, cfg, nil
}
