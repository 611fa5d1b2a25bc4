package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mselser95/exchange-settlement/internal/app"
	"github.com/mselser95/exchange-settlement/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the settlement service",
	Long: `Starts the settlement service, which will:
1. Connect the state store (memory, postgres or redis)
2. Connect the event sink (console, postgres, nats or none)
3. Serve order queries, probes and metrics over HTTP
4. Stream committed events to websocket clients on /ws/events`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "", "HTTP port (overrides HTTP_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	port, _ := cmd.Flags().GetString("port")
	if port != "" {
		cfg.HTTPPort = port
	}

	// Create logger
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
