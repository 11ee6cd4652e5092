package etl

// Logger receives human-readable progress messages from every stage.
// Implementations must not fail; see logging.ProgressLog.
type Logger interface {
	Log(message string)
}

// LoggerFunc adapts a plain function to the Logger interface.
type LoggerFunc func(string)

func (f LoggerFunc) Log(message string) { f(message) }

// NopLogger discards every message.
var NopLogger Logger = LoggerFunc(func(string) {})

func orNop(l Logger) Logger {
	if l == nil {
		return NopLogger
	}
	return l
}
