package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-autosave/internal/config"
	"github.com/stacklok/toolhive-autosave/internal/dispatch"
	"github.com/stacklok/toolhive-autosave/internal/httpclient"
)

const (
	defaultClientTimeout = 10 * time.Second
)

var requestCmd = &cobra.Command{
	Use:   "request START_SAVING|KILL_PROCESS|CANCEL_SAVING",
	Short: "Send a request to a running daemon",
	Long: `Send a save, kill or cancel request to a running daemon's control API.

START_SAVING   start a save, or schedule one more pass if a save is running
KILL_PROCESS   exit the daemon once the outstanding save finishes
CANCEL_SAVING  exit the daemon immediately, abandoning a save in progress`,
	Args: cobra.ExactArgs(1),
	RunE: runRequest,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the save status of a running daemon",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	for _, cmd := range []*cobra.Command{requestCmd, statusCmd} {
		cmd.Flags().String("address", config.DefaultControlAddress, "Control API address of the daemon")
		cmd.Flags().Duration("timeout", defaultClientTimeout, "Request timeout")
	}
}

// controlURL builds a control API URL from the command's --address flag
func controlURL(cmd *cobra.Command, path string) (string, error) {
	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return "", err
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}
	return "http://" + address + path, nil
}

func clientFor(cmd *cobra.Command) (httpclient.Client, error) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}
	return httpclient.NewDefaultClient(timeout), nil
}

func runRequest(cmd *cobra.Command, args []string) error {
	req, err := dispatch.ParseRequest(args[0])
	if err != nil {
		return fmt.Errorf("%w: %s (expected one of %v)", err, args[0], dispatch.Requests)
	}

	url, err := controlURL(cmd, "/requests/"+string(req))
	if err != nil {
		return err
	}
	client, err := clientFor(cmd)
	if err != nil {
		return err
	}

	body, err := client.Post(cmd.Context(), url)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.Rejected() {
			return fmt.Errorf("daemon rejected %s: %s", req, httpErr.Message)
		}
		return fmt.Errorf("failed to send %s: %w", req, err)
	}

	var resp dispatch.RequestResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.Request, resp.Status)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	url, err := controlURL(cmd, "/status")
	if err != nil {
		return err
	}
	client, err := clientFor(cmd)
	if err != nil {
		return err
	}

	body, err := client.Get(cmd.Context(), url)
	if err != nil {
		return fmt.Errorf("failed to fetch status: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(body), "", "  "); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String())
	return nil
}
