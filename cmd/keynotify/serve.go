package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/keynotify/dashboard"
	"github.com/MrEthical07/keynotify/metrics/export/prometheus"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

func serveCmd(a *app, connect connectFunc) *cobra.Command {
	var (
		addr    string
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local dashboard",
		Long: `Run the dashboard on a local address. Startup verification of the stored
token runs in the background; protected views answer 503 until it settles.`,
		RunE: withClient(a, connect, func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dash := dashboard.New(a.client)
			defer dash.Close()

			r := chi.NewRouter()
			if metrics {
				r.Handle("/metrics", prometheus.NewPrometheusExporter(a.client).Handler())
			}
			r.Mount("/", dash)

			srv := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			go a.client.Verify(ctx)

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe()
			}()
			success(cmd.OutOrStdout(), "dashboard listening on %s", addr)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "serve Prometheus metrics on /metrics")
	return cmd
}
