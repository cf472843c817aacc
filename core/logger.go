package core

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

type Logger struct {
	handlerFunc func(level string, msg string, attrs map[string]interface{})
	attrs       map[string]interface{}
}

func NewLogger(handler func(level string, msg string, attrs map[string]interface{})) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// NewDevelopmentLogger creates a logger writing text lines to stdout through logrus.
func NewDevelopmentLogger() *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)
	base.SetLevel(logrus.TraceLevel)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return NewLogrusLogger(base)
}

// NewLogrusLogger routes every level through the given logrus logger.
// FATAL and PANIC keep their logrus semantics (exit / panic).
func NewLogrusLogger(base *logrus.Logger) *Logger {
	handler := func(level string, msg string, attrs map[string]interface{}) {
		entry := base.WithFields(logrus.Fields(attrs))
		switch level {
		case "TRACE":
			entry.Trace(msg)
		case "DEBUG":
			entry.Debug(msg)
		case "INFO":
			entry.Info(msg)
		case "WARN":
			entry.Warn(msg)
		case "ERROR":
			entry.Error(msg)
		case "FATAL":
			entry.Fatal(msg)
		case "PANIC":
			entry.Panic(msg)
		default:
			entry.Info(msg)
		}
	}
	return NewLogger(handler)
}

// NewNopLogger discards everything. Used by tests.
func NewNopLogger() *Logger {
	return NewLogger(func(string, string, map[string]interface{}) {})
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc != nil {
		if len(args) > 0 {
			// Detect slog-style key-value pairs: even number of args where
			// odd-positioned args (keys) are strings.
			if isKeyValuePairs(args) {
				attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
				for k, v := range l.attrs {
					attrs[k] = v
				}
				for i := 0; i < len(args)-1; i += 2 {
					key, _ := args[i].(string)
					attrs[key] = args[i+1]
				}
				l.handlerFunc(level, msg, attrs)
				return
			}
			msg = fmt.Sprintf(msg, args...)
		}
		l.handlerFunc(level, msg, l.attrs)
	}
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log("DEBUG", msg, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", format, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log("INFO", msg, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log("WARN", msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args...)
}

func (l *Logger) Trace(msg string, args ...interface{}) {
	l.log("TRACE", msg, args...)
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{})
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
	}
}
