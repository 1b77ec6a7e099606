package logsvc

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fpkuniversity/scorm-runtime/core"
)

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// ConsoleLogger writes leveled, human readable logs to stdout.
type ConsoleLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(conf *core.Config) *ConsoleLogger {
	return newConsoleLogger(zapcore.AddSync(os.Stdout), conf.LogLevel)
}

func newConsoleLogger(out zapcore.WriteSyncer, level string) *ConsoleLogger {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	l := &ConsoleLogger{level: lvl}
	l.SetLevel(level)

	l.sugar = zap.New(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), out, lvl),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	).Sugar()
	return l
}

// SetLevel accepts debug, info, warn, error and fatal. Anything else means info.
func (l *ConsoleLogger) SetLevel(level string) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}
	l.level.SetLevel(zl)
}

func (l *ConsoleLogger) Sync() error {
	return l.sugar.Sync()
}

// keysAndValues flattens the context args of a core.Logger call.
func keysAndValues(args []interface{}) []interface{} {
	kvs := make([]interface{}, 0, len(args)*2)
	var extra int
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			kvs = append(kvs, "error", fmt.Sprintf("%+v", v))
		case core.Learner:
			kvs = append(kvs, "learner", v.ID)
		case map[string]interface{}:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				kvs = append(kvs, k, v[k])
			}
		default:
			extra++
			kvs = append(kvs, fmt.Sprintf("arg%d", extra), v)
		}
	}
	return kvs
}

func (l *ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues(args)...)
}

func (l *ConsoleLogger) Info(msg string, args ...interface{}) {
	l.sugar.Infow(msg, keysAndValues(args)...)
}

func (l *ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues(args)...)
}

func (l *ConsoleLogger) Error(msg string, args ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues(args)...)
}

func (l *ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.sugar.Fatalw(msg, keysAndValues(args)...)
}
