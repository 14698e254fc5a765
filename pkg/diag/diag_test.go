package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSinkLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewSink(zap.New(core).Sugar(), 4)

	s.Report("No arm solution", false)
	s.Report("Arm retract rejected", true)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "No arm solution", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestSinkMirrorsMessages(t *testing.T) {
	s := NewSink(nil, 4)
	s.Report("Illegal target arm position", false)

	select {
	case m := <-s.Messages():
		assert.Equal(t, "Illegal target arm position", m.Text)
		assert.False(t, m.Fatal)
		assert.False(t, m.Time.IsZero())
	default:
		t.Fatal("expected a message")
	}
}

func TestSinkDropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewSink(zap.New(core).Sugar(), 2)

	for _, msg := range []string{"a", "b", "c"} {
		s.Report(msg, false)
	}

	assert.Equal(t, 3, logs.Len(), "every message is logged")
	assert.Len(t, s.Messages(), 2)
	assert.Equal(t, "a", (<-s.Messages()).Text)
	assert.Equal(t, "b", (<-s.Messages()).Text)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(true, t.TempDir()+"/chargedup.log")
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(false)
	require.NoError(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}
