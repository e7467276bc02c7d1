package core

// Logger is any leveled logger.
// args may carry anything printable; implementations may pull specific types
// out (eg. the acting user) to enrich their reports.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
