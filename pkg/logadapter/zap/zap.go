// Package zap adapts a zap logger to pixcache.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/LavishGent/pixcache/pkg/pixcache"
)

// ZapLogger logs key/value pairs through a SugaredLogger.
type ZapLogger struct{ L *zap.SugaredLogger }

// New wraps l.
func New(l *zap.Logger) ZapLogger {
	return ZapLogger{L: l.Sugar()}
}

func (z ZapLogger) Debug(msg string, args ...any) { z.L.Debugw(msg, args...) }
func (z ZapLogger) Info(msg string, args ...any)  { z.L.Infow(msg, args...) }
func (z ZapLogger) Warn(msg string, args ...any)  { z.L.Warnw(msg, args...) }
func (z ZapLogger) Error(msg string, args ...any) { z.L.Errorw(msg, args...) }

var _ pixcache.Logger = ZapLogger{}
