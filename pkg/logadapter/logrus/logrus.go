// Package logrus adapts a logrus entry to pixcache.Logger.
package logrus

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/LavishGent/pixcache/pkg/pixcache"
)

// LogrusLogger logs key/value pairs as logrus fields.
type LogrusLogger struct{ E *logrus.Entry }

// New wraps l.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: logrus.NewEntry(l)}
}

func (l LogrusLogger) Debug(msg string, args ...any) { l.E.WithFields(fields(args)).Debug(msg) }
func (l LogrusLogger) Info(msg string, args ...any)  { l.E.WithFields(fields(args)).Info(msg) }
func (l LogrusLogger) Warn(msg string, args ...any)  { l.E.WithFields(fields(args)).Warn(msg) }
func (l LogrusLogger) Error(msg string, args ...any) { l.E.WithFields(fields(args)).Error(msg) }

// fields pairs up alternating keys and values. A trailing key without a
// value is kept under "!BADKEY", as slog does.
func fields(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	out := make(logrus.Fields, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			out["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		out[key] = args[i+1]
	}
	return out
}

var _ pixcache.Logger = LogrusLogger{}
