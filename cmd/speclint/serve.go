package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/speclint/internal/api"
	"github.com/dgallion1/speclint/internal/linkcheck"
	"github.com/dgallion1/speclint/internal/pipeline"
)

func serveCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the validation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			reg, err := loadSchemas(g.cfg.SchemaDir)
			if err != nil {
				return &exitError{code: exitSchemaLoad, err: err}
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var links pipeline.LinkChecker
			if g.cfg.CheckLinks {
				checker := linkcheck.New(g.cfg.LinkTimeout, g.cfg.LinkWorkers, log)
				defer checker.Close()
				links = checker
			}

			srv := api.NewServer(reg, links, log, g.cfg)
			srv.StartCleanup(ctx, 5*time.Minute)

			httpServer := &http.Server{
				Addr:         ":" + g.cfg.Port,
				Handler:      srv,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown.
			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				<-sigCh
				log.Info("shutting down...")
				cancel()

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)
			}()

			log.Info("starting speclint", "port", g.cfg.Port, "auth", g.cfg.APIKey != "")
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return &exitError{code: exitFindings, err: fmt.Errorf("server error: %w", err)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&g.cfg.Port, "port", g.cfg.Port, "Listen port")
	cmd.Flags().BoolVar(&g.cfg.CheckLinks, "check-links", g.cfg.CheckLinks, "Probe external links over HTTP")
	return cmd
}
