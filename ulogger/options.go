package ulogger

import (
	"io"
	"os"
)

// Options configures a Logger built by New or NewZeroLogger.
type Options struct {
	writer     io.Writer
	logLevel   string
	loggerType string
	skip       int
}

// Option is a function that sets some option on the Options struct.
type Option func(*Options)

// DefaultOptions returns the options used when none are supplied: INFO level,
// writing to stdout, backed by zerolog.
func DefaultOptions() *Options {
	return &Options{
		writer:     os.Stdout,
		logLevel:   "INFO",
		loggerType: "zerolog",
		skip:       0,
	}
}

// WithWriter sets the destination for log lines.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.writer = w
	}
}

// WithLevel sets the minimum level that will be logged (DEBUG, INFO, WARN,
// ERROR, FATAL).
func WithLevel(level string) Option {
	return func(o *Options) {
		o.logLevel = level
	}
}

// WithLoggerType selects the backend; currently only "zerolog" is
// implemented.
func WithLoggerType(loggerType string) Option {
	return func(o *Options) {
		o.loggerType = loggerType
	}
}

// WithSkipFrame adjusts the caller-frame count reported in log lines, used
// when a helper wraps Logger calls one level deeper.
func WithSkipFrame(skip int) Option {
	return func(o *Options) {
		o.skip = skip
	}
}
