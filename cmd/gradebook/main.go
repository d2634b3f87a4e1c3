// Package main is the gradebook command. "serve" runs the dashboard API;
// the other subcommands work offline on a single table.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aula-hub/gradebook/config"
)

var (
	// configFile is an optional YAML configuration file
	configFile string
	// envFile is loaded into the environment before GRADEBOOK_* variables are read
	envFile string
	// version is set at build time with -ldflags "-X main.version=..."
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gradebook",
	Short: "Academic performance dashboard",
	Long: `gradebook validates a table of student scores, computes averages, letter
grades and pass/fail status, and serves dashboards, feedback and reports.

Configuration comes from built-in defaults, an optional YAML file, an
optional .env file and GRADEBOOK_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded when present")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(sampleCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: configFile, DotEnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
