package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/web"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web dashboard",
	Long: `Serve the web dashboard.

Each browser keeps its own login in the auth_token cookie; the dashboard
talks to the configured API on its behalf. Prometheus metrics are served
at /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := serveAddr
	if addr == "" {
		addr = cfg.Dashboard.Addr
	}
	// A server should say where it is listening.
	if !rootVerbose {
		logger.SetLevel(log.InfoLevel)
	}

	client := api.New(cfg.API.URL, api.Options{
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Logger:     logger,
	})
	handler := web.NewHandler(web.Options{
		Client: client,
		Logger: logger,
		Secure: cfg.Dashboard.SecureCookies,
	})

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return web.Serve(ctx, addr, handler, logger)
}
