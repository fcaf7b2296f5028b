package ulogger

import (
	"sync"
	"testing"
)

// VerboseTestLogger routes log lines to t.Logf so they show up interleaved
// with test output. It is safe for concurrent use and tolerates a nil
// *testing.T (lines are dropped), which keeps table-driven helpers simple.
type VerboseTestLogger struct {
	t     *testing.T
	mutex sync.Mutex
}

func NewVerboseTestLogger(t *testing.T) *VerboseTestLogger {
	return &VerboseTestLogger{t: t}
}

func (l *VerboseTestLogger) LogLevel() int {
	return 0
}

func (l *VerboseTestLogger) SetLogLevel(level string) {}

func (l *VerboseTestLogger) New(service string, options ...Option) Logger {
	return l
}

func (l *VerboseTestLogger) Duplicate(options ...Option) Logger {
	return l
}

func (l *VerboseTestLogger) logf(prefix, format string, args ...interface{}) {
	if l.t == nil {
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.t.Logf(prefix+" "+format, args...)
}

func (l *VerboseTestLogger) Debugf(format string, args ...interface{}) {
	l.logf("[DEBUG]", format, args...)
}

func (l *VerboseTestLogger) Infof(format string, args ...interface{}) {
	l.logf("[INFO]", format, args...)
}

func (l *VerboseTestLogger) Warnf(format string, args ...interface{}) {
	l.logf("[WARN]", format, args...)
}

func (l *VerboseTestLogger) Errorf(format string, args ...interface{}) {
	l.logf("[ERROR]", format, args...)
}

func (l *VerboseTestLogger) Fatalf(format string, args ...interface{}) {
	if l.t == nil {
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.t.Fatalf("[FATAL] "+format, args...)
}
