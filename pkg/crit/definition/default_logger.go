// Package definition holds the default Logger implementation, kept in
// its own package the way the teacher (pkg/mcast/definition) separates
// it from the types.Logger interface it implements.
package definition

import (
	"fmt"

	plog "github.com/prometheus/common/log"

	"github.com/critdb/crit/pkg/crit/types"
)

// DefaultLogger is used whenever a caller does not supply its own
// types.Logger. It wraps github.com/prometheus/common/log the way the
// teacher's core/transport.go reaches for that same package directly;
// here it backs every level of the narrow Logger surface instead of
// being called ad hoc.
type DefaultLogger struct {
	base      plog.Logger
	component string
	debug     bool
}

// NewDefaultLogger builds a DefaultLogger tagging every line with the
// given component name (table server name, "ack", "join", ...).
func NewDefaultLogger(component string) *DefaultLogger {
	return &DefaultLogger{
		base:      plog.Base(),
		component: component,
	}
}

var _ types.Logger = (*DefaultLogger)(nil)

func (l *DefaultLogger) withComponent() plog.Logger {
	return l.base.With("component", l.component)
}

func (l *DefaultLogger) Info(v ...interface{})  { l.withComponent().Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.withComponent().Info(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Warn(v ...interface{}) { l.withComponent().Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.withComponent().Warn(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Error(v ...interface{}) { l.withComponent().Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.withComponent().Error(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.withComponent().Debug(v...)
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.withComponent().Debug(fmt.Sprintf(format, v...))
	}
}

func (l *DefaultLogger) Fatal(v ...interface{}) { l.withComponent().Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.withComponent().Fatal(fmt.Sprintf(format, v...))
}

func (l *DefaultLogger) Panic(v ...interface{}) { l.withComponent().Fatal(v...) }
func (l *DefaultLogger) Panicf(format string, v ...interface{}) {
	l.withComponent().Fatal(fmt.Sprintf(format, v...))
}

// ToggleDebug enables or disables Debug/Debugf output, returning the
// new value.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	return l.debug
}
