// Package logging bridges the process zap logger into the context
// logger the dispatch core reads with zlog.FromContext.
package logging

import (
	"context"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.uber.org/zap"
)

type zapLogger struct{ l *zap.Logger }

// FromZap wraps l as a zlog logger. Level, encoding and sinks stay
// those of l.
func FromZap(l *zap.Logger) lg.ZLogger {
	if l == nil {
		return lg.Discard
	}
	return &zapLogger{l: l}
}

// Attach stores l in ctx for zlog.FromContext.
func Attach(ctx context.Context, l *zap.Logger) context.Context {
	return lg.Attach(ctx, FromZap(l))
}

func (z *zapLogger) Debug(msg string, fields ...lg.Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...lg.Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...lg.Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...lg.Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) Sync() error                          { return z.l.Sync() }

func (z *zapLogger) With(fields ...lg.Field) lg.ZLogger {
	return &zapLogger{l: z.l.With(fields...)}
}
