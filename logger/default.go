package logger

import "sync/atomic"

// loggerHolder keeps the Logger interface value behind a single pointer type.
type loggerHolder struct {
	Logger
}

var defLogger atomic.Pointer[loggerHolder]

func init() {
	defLogger.Store(&loggerHolder{NewSlog(InfoLevel, false)})
}

func current() Logger {
	return defLogger.Load().Logger
}

// Debug logs a message at DebugLevel on the default logger.
func Debug(msg string, keysAndValues ...any) {
	current().Debug(msg, keysAndValues...)
}

// Info logs a message at InfoLevel on the default logger.
func Info(msg string, keysAndValues ...any) {
	current().Info(msg, keysAndValues...)
}

// Warn logs a message at WarnLevel on the default logger.
func Warn(msg string, keysAndValues ...any) {
	current().Warn(msg, keysAndValues...)
}

// Error logs a message at ErrorLevel on the default logger.
func Error(msg string, keysAndValues ...any) {
	current().Error(msg, keysAndValues...)
}

// Fatal logs a message at FatalLevel on the default logger, then exits.
func Fatal(msg string, keysAndValues ...any) {
	current().Fatal(msg, keysAndValues...)
}

// SetLevel sets the level of the default logger.
func SetLevel(level LogLevel) {
	current().SetLevel(level)
}

// SetLogger replaces the default logger and returns a function restoring the previous one.
// A nil logger is ignored. It is safe to call while other goroutines log.
func SetLogger(l Logger) (restore func()) {
	if l == nil {
		return func() {}
	}

	prev := defLogger.Swap(&loggerHolder{l})

	return func() { defLogger.Store(prev) }
}

// GetLogger returns the default logger. Servers use it when no logger is configured.
func GetLogger() Logger {
	return current()
}

// With returns a child of the default logger carrying keyValues.
func With(keyValues ...any) Logger {
	return current().With(keyValues...)
}
