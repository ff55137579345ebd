// Package cli defines the edgetunnel command-line surface: a single serve
// command that starts the HTTP route table and tunnel engine, following
// the teacher pack's cobra command style.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hobihaus/edgetunnel/internal/app"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "edgetunnel",
	Short: "Multi-protocol tunnel-over-WebSocket edge proxy",
	Long: `edgetunnel terminates a WebSocket connection, auto-detects the
VLESS, Trojan, or Shadowsocks framing of the first client message, and
relays bytes to the parsed destination, a region-selected upstream, or a
UDP-over-TCP relay gateway.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the edge proxy server",
	RunE:  runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "use human-readable development logging instead of production JSON")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, devMode); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Execute runs the root command, returning any error for main to report.
func Execute() error {
	return rootCmd.Execute()
}
