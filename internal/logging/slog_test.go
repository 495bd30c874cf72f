package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLoggerLevels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	assert.Contains(t, out, "level=INFO msg=inf b=2")
	assert.Contains(t, out, "level=WARN msg=wrn c=3")
	assert.Contains(t, out, "level=ERROR msg=err d=4")
}

func TestSlogLoggerWith(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("component", "tokens").Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	assert.Contains(t, out, "component=tokens")
	assert.Contains(t, out, "k=v")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.NotPanics(t, func() {
		log.Info(context.TODO(), "ignored")
		log.With("a", 1).Error(context.TODO(), "ignored")
	})
}
