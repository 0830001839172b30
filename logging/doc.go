// Package logging provides the minimal Logger interface used throughout
// legalmesh plus slog-backed implementations.
//
//   - Logger: Debug/Info/Warn/Error with slog-style key/value pairs
//   - StructuredLogger: JSON or text output with component/session attributes
//   - SlogAdapter: wraps an existing *slog.Logger
//   - NoOpLogger: discards everything (tests)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json"})
//	logger.WithComponent("a2a").Info("a2a.task.completed", "task_id", id)
//
// Messages are dotted event names ("tool.call.success"); details travel as
// attributes rather than being formatted into the message.
package logging
