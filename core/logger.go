package core

// Logger is any service that can log messages.
// args are optional context values: errors, maps and the current Learner.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Learner identifies the authenticated caller of the runtime API.
type Learner struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
