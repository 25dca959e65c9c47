package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/MasonSRE/opsorch/cache"
	"github.com/MasonSRE/opsorch/coalesce"
	"github.com/MasonSRE/opsorch/config"
	"github.com/MasonSRE/opsorch/loading"
	pmet "github.com/MasonSRE/opsorch/metrics/prom"
	"github.com/MasonSRE/opsorch/notify"
	"github.com/MasonSRE/opsorch/timer"
)

const (
	batchEvery = 250 // lookups between batch command runs per worker
	batchSize  = 12
	probeEvery = 200 * time.Millisecond
)

type workload struct {
	duration time.Duration
	workers  int
	hosts    int
	metrics  prometheus.Registerer
	logger   log.Interface
}

type report struct {
	elapsed        time.Duration
	lookups        uint64
	lookupFailures uint64
	upstreamCalls  uint64
	batches        uint64
	batchItems     uint64
	batchFailures  uint64
	probeFailures  int
	cache          cache.Stats
}

type hostStatus struct {
	Host    string
	Healthy bool
	Load    float64
}

// backend simulates the inventory API: bulk status lookups, remote
// commands and a health endpoint, each with a small failure rate.
type backend struct {
	calls atomic.Uint64
}

var errBackend = errors.New("backend: 503 service unavailable")

func (b *backend) statuses(ctx context.Context, hosts []string) ([]hostStatus, error) {
	b.calls.Add(1)
	if err := b.latency(ctx); err != nil {
		return nil, err
	}
	if rand.IntN(100) < 2 {
		return nil, errBackend
	}
	out := make([]hostStatus, len(hosts))
	for i, h := range hosts {
		out[i] = hostStatus{Host: h, Healthy: rand.IntN(20) != 0, Load: rand.Float64() * 4}
	}
	return out, nil
}

func (b *backend) restart(ctx context.Context, host string) (string, error) {
	if err := b.latency(ctx); err != nil {
		return "", err
	}
	if rand.IntN(10) == 0 {
		return "", fmt.Errorf("restart %s: exit status 1", host)
	}
	return host + ": restarted", nil
}

func (b *backend) ping(ctx context.Context) error {
	if err := b.latency(ctx); err != nil {
		return err
	}
	if rand.IntN(5) == 0 {
		return errBackend
	}
	return nil
}

func (b *backend) latency(ctx context.Context) error {
	t := time.NewTimer(time.Duration(1+rand.IntN(3)) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// runWorkload builds every component from cfg, runs w and tears all of
// them down before returning.
func runWorkload(ctx context.Context, cfg config.Config, w workload) (report, error) {
	ns := cfg.Metrics.Namespace
	var be backend

	reg := timer.New(timer.WithLogger(w.logger))
	defer reg.ClearAll()

	co := coalesce.New[string, string, hostStatus](
		coalesce.WithWindow(cfg.Coalescer.Window),
		coalesce.WithRegistry(reg),
		coalesce.WithMetrics(pmet.NewCoalescerAdapter(w.metrics, ns, "", nil)),
		coalesce.WithLogger(w.logger),
	)
	defer co.Close()

	c := cache.New[string, hostStatus](cache.Options[string, hostStatus]{
		MaxSize:    cfg.Cache.MaxSize,
		DefaultTTL: cfg.Cache.DefaultTTL,
		Metrics:    pmet.NewCacheAdapter(w.metrics, ns, "hosts", nil),
		Loader: func(ctx context.Context, host string) (hostStatus, error) {
			return co.Batch(ctx, "host-status", be.statuses, host)
		},
	})
	defer c.Close()
	reg.SetInterval(func() {
		if n := c.Cleanup(); n > 0 {
			w.logger.WithField("removed", n).Debug("cache: swept expired entries")
		}
	}, cfg.Cache.CleanupInterval)

	o := loading.New(
		loading.WithNotifier(notify.LogNotifier{Logger: w.logger}),
		loading.WithRegistry(reg),
		loading.WithLogger(w.logger),
		loading.WithMetrics(pmet.NewLoadingAdapter(w.metrics, ns, "", nil)),
		loading.WithDefaults(cfg.LoadingDefaults()),
	)
	defer o.ClearAll()
	hosts := o.Scope("hosts")

	var probeFailures atomic.Int64
	probe := reg.SetRetryInterval(be.ping, probeEvery, 0, func(err error, n int) {
		probeFailures.Store(int64(n))
		w.logger.WithError(err).WithField("attempt", n).Debug("health: probe failed")
	})
	defer probe.Stop()

	var rep report
	var lookups, lookupFailures, batches, items, itemFailures atomic.Uint64

	progress := loading.Throttle(o, hosts.Key("progress"), func(n uint64) {
		w.logger.WithField("lookups", humanize.Comma(int64(n))).Info("orchbench: progress")
	}, time.Second)

	runCtx, cancel := context.WithTimeout(ctx, w.duration)
	defer cancel()

	start := time.Now()
	g, gctx := errgroup.WithContext(runCtx)
	for id := 0; id < w.workers; id++ {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(id), uint64(start.UnixNano())))
			zipf := rand.NewZipf(r, 1.1, 1, uint64(w.hosts-1))
			restartKey := hosts.Key(fmt.Sprintf("restart-%d", id))
			statusKey := hosts.Key("status")

			for i := 1; gctx.Err() == nil; i++ {
				host := fmt.Sprintf("host-%04d", zipf.Uint64())
				_, err := loading.WithLoading(gctx, o, statusKey, func(ctx context.Context) (hostStatus, error) {
					return c.GetOrLoad(ctx, host)
				}, loading.ShowNotification(false))
				if gctx.Err() != nil {
					return nil
				}
				progress(lookups.Add(1))
				if err != nil {
					lookupFailures.Add(1)
				}

				if i%batchEvery != 0 {
					continue
				}
				ops := make([]loading.Operation[string], batchSize)
				for j := range ops {
					target := fmt.Sprintf("host-%04d", r.IntN(w.hosts))
					ops[j] = func(ctx context.Context) (string, error) { return be.restart(ctx, target) }
				}
				run := loading.WithBatchLoading(gctx, o, restartKey, ops,
					loading.Message("Restarting hosts"), loading.ShowNotification(false))
				batches.Add(1)
				items.Add(uint64(run.Total))
				itemFailures.Add(uint64(run.ErrorCount))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}

	rep.elapsed = time.Since(start)
	rep.lookups = lookups.Load()
	rep.lookupFailures = lookupFailures.Load()
	rep.upstreamCalls = be.calls.Load()
	rep.batches = batches.Load()
	rep.batchItems = items.Load()
	rep.batchFailures = itemFailures.Load()
	rep.probeFailures = int(probeFailures.Load())
	rep.cache = c.Stats()
	return rep, nil
}
