// chat2test - spec-to-test assistant server
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/chat2test/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "chat2test",
	Short: "Spec-to-test assistant API server",
	Long:  `chat2test serves the chat, project and test case API used by the spec-to-test assistant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads the dotenv file, reads configuration and installs the
// JSON logger at the configured level.
func loadConfig() (*config.Config, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(envFile); err != nil {
		slog.Info("No .env file found, using environment variables", "path", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}
