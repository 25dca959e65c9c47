// Command orchbench wires the cache, coalescer, timer registry and loading
// orchestrator together from a config file and drives a synthetic
// operations-dashboard workload against a simulated backend, exposing
// Prometheus metrics while it runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/MasonSRE/opsorch/config"
	"github.com/MasonSRE/opsorch/internal/logging"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "orchbench:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "orchbench",
		Usage: "drive a synthetic ops-dashboard workload through the orchestration layer",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON config file (defaults apply when empty)",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Value: 10 * time.Second,
				Usage: "how long to run the workload",
			},
			&cli.IntFlag{
				Name:  "workers",
				Value: 2 * runtime.GOMAXPROCS(0),
				Usage: "number of concurrent dashboard sessions",
			},
			&cli.IntFlag{
				Name:  "hosts",
				Value: 1_000,
				Usage: "size of the simulated host inventory",
			},
			&cli.StringFlag{
				Name:  "http",
				Usage: "serve /metrics at addr (overrides metrics.addr)",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if addr := cmd.String("http"); addr != "" {
		cfg.Metrics.Addr = addr
	}

	closer, err := logging.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.WithField("addr", cfg.Metrics.Addr).Info("metrics: serving /metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics: server stopped")
			}
		}()
		defer srv.Close()
	}

	if path := cmd.String("config"); path != "" {
		watchCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			err := config.Watch(watchCtx, path, func(next config.Config, err error) {
				if err == nil {
					err = logging.SetLevel(next.Log.Level)
				}
				if err != nil {
					log.WithError(err).Warn("config: reload failed")
					return
				}
				log.WithField("level", next.Log.Level).Info("config: reloaded log level")
			}, 0)
			if err != nil {
				log.WithError(err).Warn("config: not watching")
			}
		}()
	}

	w := workload{
		duration: cmd.Duration("duration"),
		workers:  max(int(cmd.Int("workers")), 1),
		hosts:    max(int(cmd.Int("hosts")), 1),
		metrics:  prometheus.DefaultRegisterer,
		logger:   log.Log,
	}
	rep, err := runWorkload(ctx, cfg, w)
	if err != nil {
		return err
	}
	printReport(cfg, w, rep)
	return nil
}

func printReport(cfg config.Config, w workload, r report) {
	secs := r.elapsed.Seconds()
	fmt.Printf("workers=%d hosts=%s dur=%v window=%v max_size=%d\n",
		w.workers, humanize.Comma(int64(w.hosts)), r.elapsed.Round(time.Millisecond),
		cfg.Coalescer.Window, cfg.Cache.MaxSize)
	fmt.Printf("lookups=%s (%s/s) failed=%s upstream_calls=%s\n",
		humanize.Comma(int64(r.lookups)), humanize.Comma(int64(float64(r.lookups)/secs)),
		humanize.Comma(int64(r.lookupFailures)), humanize.Comma(int64(r.upstreamCalls)))
	fmt.Printf("batches=%s items=%s failed_items=%s\n",
		humanize.Comma(int64(r.batches)), humanize.Comma(int64(r.batchItems)), humanize.Comma(int64(r.batchFailures)))
	fmt.Printf("cache size=%d hits=%s misses=%s hit-rate=%.2f%%\n",
		r.cache.Size, humanize.Comma(int64(r.cache.Hits)), humanize.Comma(int64(r.cache.Misses)), 100*r.cache.HitRate)
	fmt.Printf("health probe last failure streak=%d\n", r.probeFailures)
}
