package notify_test

import (
	"context"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/google/go-cmp/cmp"

	"github.com/MasonSRE/opsorch/notify"
	"github.com/MasonSRE/opsorch/notify/notifytest"
)

func TestHelpers(t *testing.T) {
	t.Parallel()

	var rec notifytest.Recorder
	ctx := context.Background()
	notify.Success(ctx, &rec, "done")
	notify.Error(ctx, &rec, "failed")
	notify.Warning(ctx, &rec, "partial")
	notify.Info(ctx, &rec, "fyi")

	want := []notify.Notice{
		{Level: notify.LevelSuccess, Message: "done"},
		{Level: notify.LevelError, Message: "failed"},
		{Level: notify.LevelWarning, Message: "partial"},
		{Level: notify.LevelInfo, Message: "fyi"},
	}
	if diff := cmp.Diff(want, rec.Notices()); diff != "" {
		t.Fatalf("notices mismatch (-want +got):\n%s", diff)
	}
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var got notify.Notice
	n := notify.Func(func(_ context.Context, n notify.Notice) { got = n })
	notify.Warning(context.Background(), n, "disk almost full")
	if got.Level != notify.LevelWarning || got.Message != "disk almost full" {
		t.Fatalf("unexpected notice %+v", got)
	}
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	h := memory.New()
	n := notify.LogNotifier{Logger: &log.Logger{Handler: h, Level: log.DebugLevel}}
	ctx := context.Background()
	notify.Error(ctx, n, "jenkins job failed")
	notify.Success(ctx, n, "cdn refreshed")

	if len(h.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(h.Entries))
	}
	if h.Entries[0].Level != log.ErrorLevel || h.Entries[0].Message != "jenkins job failed" {
		t.Fatalf("unexpected first entry %+v", h.Entries[0])
	}
	if h.Entries[1].Level != log.InfoLevel || h.Entries[1].Fields["notice"] != "success" {
		t.Fatalf("unexpected second entry %+v", h.Entries[1])
	}
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	for lvl, want := range map[notify.Level]string{
		notify.LevelInfo:    "info",
		notify.LevelSuccess: "success",
		notify.LevelWarning: "warning",
		notify.LevelError:   "error",
	} {
		if got := lvl.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", lvl, got, want)
		}
	}
}
