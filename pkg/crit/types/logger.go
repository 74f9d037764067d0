package types

// Logger is the narrow logging surface every actor in this module
// takes at construction time. Shape kept identical to the teacher's
// own Logger interface (pkg/mcast/types, implemented by
// pkg/mcast/definition.DefaultLogger) so the rest of the module reads
// exactly like code written against that interface.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
	ToggleDebug(value bool) bool
}
