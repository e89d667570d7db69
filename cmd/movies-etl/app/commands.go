// Package app provides the commands of the movies ETL binary.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/movies-etl/internal/config"
	"github.com/stacklok/movies-etl/internal/versions"
)

// Exit codes of the binary
const (
	ExitOK    = 0
	ExitError = 1
)

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "movies-etl",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Incremental PostgreSQL to Elasticsearch movies ETL",
		Long: `movies-etl keeps the movies search index in step with the content database.
Every cycle extracts the films touched since the last committed watermarks,
rebuilds their documents and publishes them in bulk.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a dotenv file, ignored when missing")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		return ExitError
	}
	return ExitOK
}

// loadConfig loads the configuration named by the persistent flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get env-file flag: %w", err)
	}

	opts := []config.Option{config.WithEnvFile(envFile)}
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// printFormatted writes v to the command output as JSON or YAML
func printFormatted(cmd *cobra.Command, v any, format string) error {
	var (
		out []byte
		err error
	)
	switch format {
	case "json":
		out, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			out = append(out, '\n')
		}
	case "yaml", "":
		out, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("unsupported format %q, use json or yaml", format)
	}
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}
			if format == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return err
			}
			return printFormatted(cmd, info, format)
		},
	}
	cmd.Flags().String("format", "", "Output format (json or yaml)")
	return cmd
}
