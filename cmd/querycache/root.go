package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	cache "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/config"
	"github.com/krisalay/query-cache/hooks"
	"github.com/krisalay/query-cache/logging"
	"github.com/krisalay/query-cache/metrics"
)

// Observers run after every other handler.
const observerPriority = 100

type rootOptions struct {
	configPath  string
	logLevel    string
	metricsAddr string

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "querycache",
		Short:         "TTL + LRU query cache with pattern invalidation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Logging.Level = opts.logLevel
			}
			if opts.metricsAddr != "" {
				cfg.Metrics.ListenAddr = opts.metricsAddr
			}
			logging.Init(cfg.LoggingConfig())
			opts.cfg = cfg
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default $"+config.ConfigPathEnvVar+" or "+config.DefaultConfigFile+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")

	cmd.AddCommand(newDemoCommand(opts), newBenchCommand(opts))
	return cmd
}

/*
runtime is one process-lifetime cache plus its observers.
close tears everything down in reverse order; it is safe to call once.
*/
type runtime struct {
	cache *cache.Cache
	close func()
}

func newRuntime(cfg *config.Config, cacheCfg cache.Config) (*runtime, error) {
	logger := logging.With().Str("component", "querycache").Logger()

	c, err := cache.New(cacheCfg,
		cache.WithName(cfg.Cache.Name),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	undo := []hooks.Deregister{
		hooks.LogSubscriber(c.Hooks(), logger, observerPriority),
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg, cfg.Metrics.Namespace, cfg.Cache.Name, c)
		undo = append(undo, m.Attach(c.Hooks(), observerPriority))

		if cfg.Metrics.ListenAddr != "" {
			srv = serveMetrics(cfg.Metrics.ListenAddr, m.Handler())
		}
	}

	return &runtime{
		cache: c,
		close: func() {
			if srv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					logging.Err(err).Msg("metrics server shutdown")
				}
			}
			for _, d := range undo {
				d()
			}
			c.Destroy()
		},
	}, nil
}

func serveMetrics(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
