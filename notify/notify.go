// Package notify defines the notification sink consumed by the
// orchestration layer. The layer only emits notices; how they are shown
// (toast, log line, chat message) is up to the host.
package notify

import (
	"context"
	"time"

	"github.com/apex/log"
)

// Level classifies a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// String returns a stable lowercase name for the level.
func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a single user-facing message.
type Notice struct {
	Level   Level
	Message string
	// Duration is a display hint; zero lets the sink pick its default.
	Duration time.Duration
}

// Notifier receives notices. Implementations must be safe for concurrent
// use and must not block for long: the layer calls Notify inline.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, n Notice)

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notice) { f(ctx, n) }

// Noop discards every notice.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, Notice) {}

// Success sends a success notice to n.
func Success(ctx context.Context, n Notifier, msg string) {
	n.Notify(ctx, Notice{Level: LevelSuccess, Message: msg})
}

// Error sends an error notice to n.
func Error(ctx context.Context, n Notifier, msg string) {
	n.Notify(ctx, Notice{Level: LevelError, Message: msg})
}

// Warning sends a warning notice to n.
func Warning(ctx context.Context, n Notifier, msg string) {
	n.Notify(ctx, Notice{Level: LevelWarning, Message: msg})
}

// Info sends an info notice to n.
func Info(ctx context.Context, n Notifier, msg string) {
	n.Notify(ctx, Notice{Level: LevelInfo, Message: msg})
}

// LogNotifier writes notices to an apex/log logger. It is the sink used by
// headless hosts such as the orchbench command.
type LogNotifier struct {
	Logger log.Interface
}

// Notify logs n at a level matching its severity.
func (l LogNotifier) Notify(_ context.Context, n Notice) {
	lg := l.Logger
	if lg == nil {
		lg = log.Log
	}
	e := lg.WithField("notice", n.Level.String())
	switch n.Level {
	case LevelError:
		e.Error(n.Message)
	case LevelWarning:
		e.Warn(n.Message)
	default:
		e.Info(n.Message)
	}
}

var (
	_ Notifier = Func(nil)
	_ Notifier = Noop{}
	_ Notifier = LogNotifier{}
)
