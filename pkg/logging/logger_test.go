package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zap.DebugLevel,
		"INFO":  zap.InfoLevel,
		"":      zap.InfoLevel,
		"Warn":  zap.WarnLevel,
		"error": zap.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestZapLogger_FieldsArePaired(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	l := &ZapLogger{logger: zap.New(obsCore)}

	l.WithField("component", "ledger").Info("position opened", "id", "p-1", "size", 10, "dangling")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "ledger", ctx["component"])
		assert.Equal(t, "p-1", ctx["id"])
		assert.EqualValues(t, 10, ctx["size"])
		assert.NotContains(t, ctx, "dangling")
	}
}

func TestZapLogger_WithFields(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	l := &ZapLogger{logger: zap.New(obsCore)}

	l.WithFields(map[string]interface{}{"venue": "paper", "symbol": "BTC/USD"}).Warn("quote missing")

	entries := logs.FilterMessage("quote missing").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "paper", entries[0].ContextMap()["venue"])
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	}
}
