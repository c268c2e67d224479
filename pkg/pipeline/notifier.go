package pipeline

import "github.com/mihaimyh/promptstudio/pkg/obs"

// Notifier receives exactly one call per workflow run: Success for a full
// or partial success, Error for a classified failure.
type Notifier interface {
	Success(run Run, message string)
	Error(run Run, kind Kind, message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Success(Run, string)     {}
func (NopNotifier) Error(Run, Kind, string) {}

// LogNotifier writes outcomes to a Logger, successes at info level and
// failures at warn level.
type LogNotifier struct {
	Logger obs.Logger
}

func (n LogNotifier) Success(run Run, message string) {
	n.Logger.Info(message, obs.F("workflow", run.Workflow), obs.F("run", run.Seq))
}

func (n LogNotifier) Error(run Run, kind Kind, message string) {
	n.Logger.Warn(message, obs.F("workflow", run.Workflow), obs.F("run", run.Seq), obs.F("kind", string(kind)))
}
