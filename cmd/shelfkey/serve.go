package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/shelfkey/internal/bridge"
	"github.com/TheMichaelB/shelfkey/internal/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bridge to the frontend",
	Long: `Serve derives the base key, prepares a fresh workspace and exposes
get_library, decrypt and get_temp_book_path over a loopback websocket.

The workspace is removed on shutdown.`,
	Example: `  shelfkey serve
  shelfkey serve --listen 127.0.0.1:9000`,
	RunE: runServe,
}

var serveListen string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "",
		"Loopback address to listen on (overrides bridge.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListen != "" {
		cfg.Bridge.Listen = serveListen
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	a := newApp()

	if err := a.keys.Init(a.backend); err != nil {
		fatal("Failed to derive the base key", err)
	}
	if err := a.workspace.Init(); err != nil {
		fatal("Failed to prepare the workspace", err)
	}
	defer a.workspace.Cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := bridge.NewPool(cfg.Bridge.Workers, logger)
	defer pool.Close()

	b := bridge.New(ctx, pool, a.library, a.decryptor, a.workspace, logger)
	server := bridge.NewServer(b, cfg.Bridge.Listen, logger)

	logger.WithFields(map[string]interface{}{
		"workspace": a.workspace.Root(),
		"workers":   cfg.Bridge.Workers,
	}).Info("Starting bridge")

	if !jsonOutput {
		printInfo("Workspace: %s", a.workspace.Root())
		printInfo("Listening on ws://%s%s (Ctrl+C to stop)", cfg.Bridge.Listen, bridge.Path)
	}

	if err := server.ListenAndServe(ctx); err != nil {
		return err
	}

	if !jsonOutput {
		printWarning("Shutting down, removing workspace")
	}
	return nil
}

// fatal reports a startup failure the process cannot continue from.
func fatal(msg string, err error) {
	logger.WithError(err).Error(msg)
	if jsonOutput {
		printJSON(models.Fail[models.Void](err.Error()))
	} else {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed, color.Bold).Sprint("Fatal error: ")+msg)
		fmt.Fprintln(os.Stderr, color.RedString("  %v", err))
	}
	os.Exit(1)
}
