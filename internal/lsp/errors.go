package lsp

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("lsp transport shut down")

	// ErrAlreadyStarted indicates Initialize was called on a running client.
	ErrAlreadyStarted = errors.New("lsp client already started")

	// ErrNotStarted indicates the client has no running server.
	ErrNotStarted = errors.New("lsp client not started")

	// ErrNoCommand indicates no server command is configured.
	ErrNoCommand = errors.New("no server command configured")

	// ErrMissingLength indicates a message without a Content-Length header.
	ErrMissingLength = errors.New("missing Content-Length header")
)

// RPCError represents a JSON-RPC error from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
)

// StartError wraps a failure to bring the server up.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}
