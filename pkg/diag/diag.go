// Package diag carries the robot's logging and the diagnostics sink that surfaces
// rejected targets and actuator faults to the operator.
package diag

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a console logger writing to the given paths, stderr when none are given.
// The dashboard owns stdout, so callers running the TUI should pass a file path.
func NewLogger(debug bool, outputPaths ...string) (*zap.SugaredLogger, error) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	logger, err := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       outputPaths,
		ErrorOutputPaths:  []string{"stderr"},
	}.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Message is one diagnostic as shown on the dashboard.
type Message struct {
	Time  time.Time
	Text  string
	Fatal bool
}

// Sink reports diagnostics to a logger and mirrors them onto a bounded channel.
// Messages are dropped when the channel is full.
type Sink struct {
	logger *zap.SugaredLogger
	msgs   chan Message
	now    func() time.Time
}

// NewSink returns a sink buffering up to size messages. A nil logger discards log output.
func NewSink(logger *zap.SugaredLogger, size int) *Sink {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if size < 1 {
		size = 1
	}
	return &Sink{
		logger: logger,
		msgs:   make(chan Message, size),
		now:    time.Now,
	}
}

// Report logs msg at warn level, or error level when fatal.
func (s *Sink) Report(msg string, fatal bool) {
	if fatal {
		s.logger.Error(msg)
	} else {
		s.logger.Warn(msg)
	}

	select {
	case s.msgs <- Message{Time: s.now(), Text: msg, Fatal: fatal}:
	default:
	}
}

// Messages returns the channel of reported diagnostics.
func (s *Sink) Messages() <-chan Message {
	return s.msgs
}
