package asx

import "github.com/joeycumines/logiface"

// LogifaeAdapter bridges asx's backend-agnostic Logger facade to a real
// github.com/joeycumines/logiface typed logger (e.g. one built on
// github.com/joeycumines/stumpy), exactly the wiring
// eventloop/coverage_extra_test.go exercises for the teacher's own
// Logger[Event] facade — carried over here as production-usable code
// (not test-only) per the ambient-stack mandate to maximize third-party
// wiring (see DESIGN.md).
type LogifaeAdapter struct {
	logger *logiface.Logger[logiface.Event]
}

// NewLogifaeAdapter wraps a generic logiface.Logger[Event] (obtained via
// (*logiface.Logger[E]).Logger() on a concrete typed logger, e.g.
// stumpy.L.New(...).Logger()) as an asx.Logger.
func NewLogifaeAdapter(logger *logiface.Logger[logiface.Event]) *LogifaeAdapter {
	return &LogifaeAdapter{logger: logger}
}

func toLogifaceLevel(l LogLevel) logiface.Level {
	switch l {
	case LevelDebug:
		return logiface.LevelDebug
	case LevelInfo:
		return logiface.LevelInformational
	case LevelWarn:
		return logiface.LevelWarning
	case LevelError:
		return logiface.LevelError
	default:
		return logiface.LevelInformational
	}
}

func (a *LogifaeAdapter) IsEnabled(level LogLevel) bool {
	if a == nil || a.logger == nil {
		return false
	}
	return a.logger.Build(toLogifaceLevel(level)).Enabled()
}

func (a *LogifaeAdapter) Log(entry LogEntry) {
	if a == nil || a.logger == nil {
		return
	}
	b := a.logger.Build(toLogifaceLevel(entry.Level)).
		Str("category", entry.Category).
		Int("region", int(entry.Region)).
		Int("task", int(entry.Task))
	if entry.Err != nil {
		b = b.Err(entry.Err)
	}
	b.Log(entry.Message)
}
