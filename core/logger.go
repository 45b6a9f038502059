package core

// Logger logs messages along with optional args.
// expected args: error, map[string]interface{}, user.Profile
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	// Critical reports a failure that needs manual intervention.
	Critical(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
