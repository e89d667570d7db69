// Package main is the entry point for the movies ETL.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/stacklok/movies-etl/cmd/movies-etl/app"
	"github.com/stacklok/movies-etl/internal/config"
	"github.com/stacklok/movies-etl/internal/logging"
)

// getLogLevel reads MOVIES_ETL_LOG_LEVEL, falling back to LOG_LEVEL.
// The run command replaces this logger once the configuration is loaded.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

func main() {
	// stderr keeps stdout clean for commands that print data
	logger, err := logging.New(logging.WithLevel(getLogLevel()))
	if err != nil {
		slog.Error("Failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.Logger)

	code := app.Execute()
	_ = logger.Close()
	os.Exit(code)
}
