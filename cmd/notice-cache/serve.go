package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/notice-cache/internal/cache"
	"github.com/renderinc/notice-cache/internal/config"
	"github.com/renderinc/notice-cache/internal/mcp"
	"github.com/renderinc/notice-cache/internal/web"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the annotation worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if host != "" {
				a.cfg.Server.Host = host
			}
			if port > 0 {
				a.cfg.Server.Port = port
			}

			if a.worker != nil {
				go func() {
					if err := a.worker.Run(ctx, a.broker, a.cfg.Broker.Group); err != nil && !errors.Is(err, context.Canceled) {
						a.logger.Error().Err(err).Msg("annotation worker stopped")
					}
				}()
			}

			opts := web.Options{
				Annotator: a.worker,
				Index:     a.idx,
				Metrics:   a.metrics,
				Logger:    a.logger,
			}
			if ttl := a.cfg.Server.BriefingCacheTTL.Std(); ttl > 0 {
				opts.Briefings = cache.New[string](ttl, 256, nil)
			}
			server := web.NewServer(a.orch, a.store, opts)

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr(),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			fmt.Println()
			fmt.Println("=== Notice Cache API ===")
			fmt.Printf("Server running at: http://%s\n", srv.Addr)
			fmt.Printf("Store:             %s\n", describeStore(a.cfg))
			fmt.Printf("Interpretation:    %v\n", a.worker != nil)
			fmt.Println()
			fmt.Println("Press Ctrl+C to stop")
			fmt.Println()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case <-ctx.Done():
			}

			a.logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "host to bind to (default from config: localhost)")
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config: 6893)")
	return cmd
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the notice tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.NewServer(Version, a.orch, a.store, a.worker, a.idx).Run()
		},
	}
}

func describeStore(cfg *config.Config) string {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		return "sqlite " + cfg.DBPath()
	case config.DriverPostgres:
		return "postgres"
	default:
		return cfg.Storage.Driver
	}
}
