package remote

import "sync"

// Logger is the structured logger used by this package.
// *logging.Logger satisfies it. Components stay silent when none is set.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// loggable is embedded by components that accept an optional Logger.
type loggable struct {
	logger   Logger
	loggerMu sync.RWMutex
}

// SetLogger sets the logger. Passing nil silences the component.
func (l *loggable) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *loggable) current() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

func (l *loggable) logDebug(msg string, keysAndValues ...any) {
	if logger := l.current(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (l *loggable) logInfo(msg string, keysAndValues ...any) {
	if logger := l.current(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (l *loggable) logWarn(msg string, keysAndValues ...any) {
	if logger := l.current(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (l *loggable) logError(msg string, err error, keysAndValues ...any) {
	if logger := l.current(); logger != nil {
		logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
