// Package main implements the taskdash CLI tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/amonks/taskdash/internal/config"
	"github.com/amonks/taskdash/internal/paths"
	"github.com/amonks/taskdash/session"
	"github.com/amonks/taskdash/todo"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err)
		var exitErr interface{ ExitCode() int }
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "taskdash",
	Short:             "Taskdash - a client for the task dashboard API",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
}

var (
	rootVerbose bool
	rootAPIURL  string
)

// Loaded by loadRuntime before any command runs.
var (
	cfg    *config.Config
	logger *log.Logger
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Log requests and state changes to stderr")
	rootCmd.PersistentFlags().StringVar(&rootAPIURL, "api-url", "", "API base URL (overrides config and TASKDASH_API_URL)")
}

func loadRuntime(cmd *cobra.Command, args []string) error {
	logger = newLogger(rootVerbose)

	cwd, err := paths.WorkingDir()
	if err != nil {
		return err
	}
	loaded, err := config.Load(cwd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("api-url") {
		loaded.API.URL = rootAPIURL
	}
	cfg = loaded
	logger.Debug("loaded config", "api", cfg.API.URL, "timeout", cfg.API.Timeout)
	return nil
}

func newLogger(verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:  level,
		Prefix: "taskdash",
	})
}

// openSession opens the session manager for the configured API.
func openSession() (*session.Manager, error) {
	return session.Open(session.OpenOptions{
		BaseURL:    cfg.API.URL,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Logger:     logger,
	})
}

// openSyncer opens the session and a syncer over it. It fails early when
// nobody is logged in.
func openSyncer() (*todo.Syncer, *session.Manager, error) {
	manager, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	if _, ok := manager.Token(); !ok {
		return nil, nil, errNotLoggedIn
	}
	syncer := todo.NewSyncer(manager, manager.Client(), nil, todo.Options{Logger: logger})
	return syncer, manager, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
