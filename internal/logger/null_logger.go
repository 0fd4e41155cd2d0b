package logger

import "github.com/sirupsen/logrus"

// NullLogger discards everything. Used by tests and by the one-shot CLI.
type NullLogger struct{}

// NewNullLogger returns a Logger that discards all output.
func NewNullLogger() Logger {
	return NullLogger{}
}

func (n NullLogger) WithFields(map[string]interface{}) Logger { return n }
func (n NullLogger) WithField(string, interface{}) Logger     { return n }
func (n NullLogger) WithError(error) Logger                   { return n }
func (NullLogger) Debug(...interface{})                       {}
func (NullLogger) Info(...interface{})                        {}
func (NullLogger) Warn(...interface{})                        {}
func (NullLogger) Error(...interface{})                       {}
func (NullLogger) Log(logrus.Level, ...interface{})           {}
func (NullLogger) Debugf(string, ...interface{})              {}
func (NullLogger) Infof(string, ...interface{})               {}
func (NullLogger) Warnf(string, ...interface{})               {}
func (NullLogger) Errorf(string, ...interface{})              {}
