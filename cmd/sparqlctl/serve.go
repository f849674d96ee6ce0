package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/sparqlops/health"
	"github.com/jonwraymond/sparqlops/observe"
	"github.com/jonwraymond/sparqlops/observe/exporters"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve endpoint health and Prometheus metrics over HTTP",
		Long: `Probe every configured endpoint on an interval and serve:

  /healthz            liveness
  /readyz             readiness over all endpoints
  /health             detailed per-endpoint status
  /health/endpoints   probe history with uptime and mean latency
  /metrics            Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			cfg.Observe.Metrics = observe.MetricsConfig{Enabled: true, Exporter: "prometheus"}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			a, err := newApp(ctx, cfg, exporters.WithRegisterer(reg))
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

			srv := &http.Server{
				Addr:              addr,
				Handler:           a.serveMux(reg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go a.probeLoop(ctx, interval)

			errc := make(chan error, 1)
			go func() {
				a.logger.Info(ctx, "serving health and metrics", observe.Field{Key: "addr", Value: addr})
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9464", "listen address")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "probe interval")
	return cmd
}

// serveMux routes the health handlers and the metrics of reg.
func (a *app) serveMux(reg *prometheus.Registry) *http.ServeMux {
	agg := health.NewAggregator()
	for _, ep := range a.endpoints {
		agg.Register(ep.Info.DisplayName(), health.NewEndpointChecker(a.pinger, ep.Info.URL, ""))
	}

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg, a.pinger.History())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return mux
}

// probeLoop pings every endpoint at once and then every interval until
// ctx is done. Results reach the history and metrics through the pinger.
func (a *app) probeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || len(a.endpoints) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results := a.ping(ctx, a.endpoints, "")
		down := 0
		for _, h := range results {
			if !h.Status.Usable() {
				down++
			}
		}
		a.logger.Debug(ctx, "endpoints probed",
			observe.Field{Key: "endpoints", Value: len(results)},
			observe.Field{Key: "unusable", Value: down},
		)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
