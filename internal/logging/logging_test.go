package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
)

func TestNew_Levels(t *testing.T) {
	t.Parallel()

	l, closer, err := New(Config{Level: "DEBUG"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()
	if l.Level != log.DebugLevel {
		t.Fatalf("level = %v, want debug", l.Level)
	}

	l, closer, err = New(Config{})
	if err != nil {
		t.Fatalf("New default: %v", err)
	}
	defer closer.Close()
	if l.Level != log.InfoLevel {
		t.Fatalf("default level = %v, want info", l.Level)
	}
}

func TestNew_Rejects(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNew_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orch.log")
	l, closer, err := New(Config{Format: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.WithField("key", "hosts").Info("cache warmed")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"cache warmed"`) || !strings.Contains(string(data), `"hosts"`) {
		t.Fatalf("unexpected log contents: %s", data)
	}
}

func TestSetLevel(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if err := SetLevel("WARN"); err != nil {
		t.Fatal(err)
	}
	defer log.SetLevel(log.InfoLevel)

	l, ok := log.Log.(*log.Logger)
	if !ok {
		t.Skip("default logger replaced")
	}
	if l.Level != log.WarnLevel {
		t.Fatalf("level = %v, want warn", l.Level)
	}
}
