package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestLazyLogger_FollowsDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	SetDefault(NewJSON(&buf))
	SetLevel(LevelDebug)

	l := Logger("core/test")
	l.Debug("hello", "relay", "wss://a")

	out := buf.String()
	assert.Contains(t, out, `"component":"core/test"`)
	assert.Contains(t, out, `"relay":"wss://a"`)
	assert.Contains(t, out, `"msg":"hello"`)
}

func TestSetLevel_FiltersBelow(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)
	defer SetLevel(LevelInfo)

	var buf bytes.Buffer
	SetDefault(NewJSON(&buf))
	SetLevel(LevelWarn)

	l := Logger("core/test")
	l.Info("dropped")
	assert.Empty(t, buf.String())
	assert.False(t, l.Enabled(LevelInfo))

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", TruncateID("abc", 8))
	assert.Equal(t, "abcdefgh", TruncateID("abcdefghij", 8))
}
