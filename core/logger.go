package core

// Logger is any service that can log app events.
// args may carry an error, a map[string]interface{} of extras and the user.User the event relates to.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user a log entry relates to.
type Person struct {
	ID    string
	Name  string
	Email string
}
