package main

import (
	"context"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/goleak"

	"github.com/MasonSRE/opsorch/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunWorkload_ShortRun(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.MaxSize = 64
	cfg.Cache.CleanupInterval = 20 * time.Millisecond
	cfg.Cache.DefaultTTL = 50 * time.Millisecond
	cfg.Coalescer.Window = 2 * time.Millisecond

	w := workload{
		duration: 300 * time.Millisecond,
		workers:  4,
		hosts:    200,
		metrics:  prometheus.NewRegistry(),
		logger:   &log.Logger{Handler: discard.New(), Level: log.DebugLevel},
	}
	rep, err := runWorkload(context.Background(), cfg, w)
	if err != nil {
		t.Fatal(err)
	}

	if rep.lookups == 0 {
		t.Fatal("workload made no lookups")
	}
	if rep.upstreamCalls == 0 || rep.upstreamCalls >= rep.lookups {
		t.Fatalf("upstream calls %d must be positive and fewer than lookups %d", rep.upstreamCalls, rep.lookups)
	}
	if rep.cache.Size > cfg.Cache.MaxSize {
		t.Fatalf("cache size %d exceeds max %d", rep.cache.Size, cfg.Cache.MaxSize)
	}
	if rep.batchItems != rep.batches*batchSize {
		t.Fatalf("batch items %d, want %d", rep.batchItems, rep.batches*batchSize)
	}
}

func TestNewApp_Flags(t *testing.T) {
	app := newApp()
	names := map[string]bool{}
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	for _, want := range []string{"config", "duration", "workers", "hosts", "http"} {
		if !names[want] {
			t.Errorf("missing flag --%s", want)
		}
	}
}
