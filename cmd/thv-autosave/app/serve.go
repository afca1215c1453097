package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	autosaveapp "github.com/stacklok/toolhive-autosave/internal/app"
	"github.com/stacklok/toolhive-autosave/internal/config"
	"github.com/stacklok/toolhive-autosave/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the autosave daemon",
	Long: `Start the autosave daemon for one application instance.

The daemon requires a configuration file (--config) that specifies:
- The persist backend (file snapshot or hook command)
- Privilege, periodic save and kill timeout settings
- The control API address and status directory

Save, kill and cancel requests arrive over the control API, through signals
(SIGUSR1 save, SIGTERM/SIGINT kill, SIGUSR2 cancel) or from the periodic ticker.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Control API address (overrides control.address)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

// buildAppOptions turns the loaded configuration and flags into app options
func buildAppOptions(cfg *config.Config, tel *telemetry.Telemetry) []autosaveapp.AutosaveAppOptions {
	opts := []autosaveapp.AutosaveAppOptions{
		autosaveapp.WithConfig(cfg),
		autosaveapp.WithTelemetry(tel),
	}

	if address := viper.GetString("address"); address != "" {
		opts = append(opts, autosaveapp.WithAddress(address))
	}

	if logHandler != nil {
		opts = append(opts, autosaveapp.WithShutdownHook("log-sync", logHandler.Sync))
	}

	return opts
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Info("Loaded configuration",
		"path", configPath,
		"instance", cfg.GetName(),
		"persist", cfg.GetPersistType(),
		"privileged", cfg.PrivilegeEnabled())

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithInstanceName(cfg.GetName()),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down telemetry", "error", err)
		}
	}()

	autosave, err := autosaveapp.NewAutosaveApp(ctx, buildAppOptions(cfg, tel)...)
	if err != nil {
		return fmt.Errorf("failed to build autosave daemon: %w", err)
	}

	// A kill request exits the process from inside the coordinator; Start only
	// returns here when the control server fails.
	if err := autosave.Start(); err != nil {
		if stopErr := autosave.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop autosave daemon", "error", stopErr)
		}
		return err
	}

	return nil
}
