// Package main is the entry point for the ToolHive autosave daemon.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-autosave/cmd/thv-autosave/app"
	"github.com/stacklok/toolhive-autosave/internal/config"
	"github.com/stacklok/toolhive-autosave/internal/logging"
)

// newEnv returns a Viper instance reading THV_AUTOSAVE_* environment variables
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// getLogLevel parses the THV_AUTOSAVE_LOG_LEVEL environment variable and returns the corresponding slog.Level.
// Falls back to LOG_LEVEL when unset.
// Defaults to slog.LevelInfo if neither is set or if the value is invalid.
func getLogLevel(v *viper.Viper) slog.Level {
	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, ok := logging.ParseLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

func main() {
	env := newEnv()

	// Use stderr to keep stdout clean for commands that output data (e.g., version --format json).
	handler := logging.NewHandler(
		logging.WithLevel(getLogLevel(env)),
		logging.WithFormat(env.GetString("LOG_FORMAT")),
	)
	slog.SetDefault(slog.New(handler))

	err := app.NewRootCmd(handler).Execute()
	_ = handler.Sync(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
