package dispatcher

import "errors"

// Registry errors.
var (
	// ErrCommandExists indicates a command id is already registered.
	ErrCommandExists = errors.New("dispatcher: command already registered")

	// ErrCommandNotFound indicates no handler is registered for a command id.
	ErrCommandNotFound = errors.New("dispatcher: command not found")

	// ErrInvalidCommand indicates an empty command id or nil handler.
	ErrInvalidCommand = errors.New("dispatcher: invalid command")

	// ErrPanic indicates the handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")
)
