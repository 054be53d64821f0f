package cli

import (
	"github.com/spf13/cobra"

	"github.com/fariz/warden/internal/daemon"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the maintenance daemon",
	Long: `Run the long-lived maintenance daemon: serves the Prometheus metrics
endpoint and prunes expired audit events on a daily schedule. Stops on
SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// The daemon has no interactive terminal; destructive calls without a
	// handler are denied.
	app, err := newApp(nil)
	if err != nil {
		return err
	}
	defer app.Close()

	d := daemon.New(app.Config, app.Logger, app.Metrics, app.Audit)
	return d.Run(cmd.Context())
}
