package app

import "errors"

// Application errors.
var (
	// ErrRestartRequested ends Run when the host restart command ran. Serve
	// answers it by building a fresh application.
	ErrRestartRequested = errors.New("extension host restart requested")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrUnknownCommand indicates an input line named no command.
	ErrUnknownCommand = errors.New("unknown command")
)

// InitError represents an initialization error.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
