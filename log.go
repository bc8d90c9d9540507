package mp4

import (
	"context"
	"log/slog"
)

// TraceLevel sits below debug and carries one record per sample or chunk.
const TraceLevel = slog.Level(-8)

func ParseLevel(level string) slog.Level {
	var lv slog.LevelVar
	if level == "trace" {
		lv.Set(TraceLevel)
	} else {
		lv.UnmarshalText([]byte(level))
	}
	return lv.Level()
}

var discard = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }

func (t *Track) trace(msg string, fields ...any) {
	t.log.Log(context.Background(), TraceLevel, msg, fields...)
}
