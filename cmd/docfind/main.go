package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/docfind-mcp/internal/mcp"
	"github.com/dshills/docfind-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:     "docfind",
		Short:   "Documentation search MCP server",
		Version: versionString(),
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serveCmd(), buildCmd(), refreshCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("%s (built %s, %s build, driver %s, vector extension %v)",
		version, buildTime, storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio with scheduled refreshes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := app.manager.CleanupStaleDatabases(); err != nil {
				app.log.Warn("stale database cleanup failed", "error", err)
			}
			if err := app.orch.Start(ctx); err != nil {
				return err
			}
			defer app.orch.Stop()

			server := mcp.NewServer(app.search, app.stores, app.orch, app.log)

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve(ctx)
			}()

			select {
			case sig := <-sigChan:
				app.log.Info("shutting down", "signal", sig.String())
				cancel()
				return nil
			case err := <-errChan:
				return err
			}
		},
	}
}

func buildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the documentation index from its sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.orch.RefreshOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d chunks in %s\n", result.ChunkCount, result.Duration.Round(timeRounding))
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the index and atomically swap it into place",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.orch.RefreshOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("refresh complete: %d chunks in %s\n", result.ChunkCount, result.Duration.Round(timeRounding))
			return nil
		},
	}
}
