// Package app provides the entry point for the ToolHive autosave application.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-autosave/pkg/versions"
)

// LogHandler is the process log handler the commands adjust and flush
type LogHandler interface {
	SetLevel(level slog.Level)
	Sync(ctx context.Context) error
}

// logHandler is set by NewRootCmd; nil when running without one (tests)
var logHandler LogHandler

var rootCmd = &cobra.Command{
	Use:               "thv-autosave",
	DisableAutoGenTag: true,
	Short:             "ToolHive autosave daemon",
	Long: `ToolHive autosave runs background save passes for a long-running application.

Save requests are coalesced so at most one pass runs at a time, and a kill request
waits for the outstanding save before the process exits.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if viper.GetBool("debug") && logHandler != nil {
			logHandler.SetLevel(slog.LevelDebug)
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates a new root command for the autosave daemon.
func NewRootCmd(h LogHandler) *cobra.Command {
	logHandler = h

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
		} else {
			fmt.Fprint(cmd.OutOrStdout(), info.String())
		}
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
