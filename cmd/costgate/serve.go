package main

import (
	"github.com/spf13/cobra"

	"github.com/whovisions/costgate/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pricing API server",
	Long: `Start the costgate HTTP server.

The server will:
  - Load configuration from costgate.yaml (or --config)
  - Open the price history store
  - Serve the pricing and routing API with Prometheus metrics
  - Hot-reload configuration on file change or SIGHUP

Environment variables:
  COSTGATE_LOG_LEVEL    - Log level: debug, info, warn, error
  COSTGATE_LOG_FORMAT   - Log format: json (default) or console

Examples:
  costgate serve
  costgate serve --config /etc/costgate/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: configPath(cmd),
		WithServer: true,
	})
	if err != nil {
		return err
	}
	return app.Run()
}
