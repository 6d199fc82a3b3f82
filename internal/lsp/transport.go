package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
)

// Direction tells a Tracer which way a message travelled.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// String returns "send" or "recv".
func (d Direction) String() string {
	if d == Incoming {
		return "recv"
	}
	return "send"
}

// Tracer observes every framed message body.
type Tracer func(dir Direction, body []byte)

// NotificationHandler handles incoming notifications from the server.
type NotificationHandler func(method string, params json.RawMessage)

// Transport handles JSON-RPC 2.0 communication over stdio.
// It implements the LSP base protocol with Content-Length headers.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
	tracer Tracer

	writeMu  sync.Mutex
	mu       sync.Mutex
	nextID   atomic.Int64
	pending  map[int64]chan *response
	handlers map[string]NotificationHandler

	closed  atomic.Bool
	done    chan struct{}
	readErr error
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewTransport creates a transport reading from r and writing to w. The
// closer, if any, is closed with the transport. A nil tracer disables
// tracing.
func NewTransport(r io.Reader, w io.Writer, c io.Closer, tracer Tracer) *Transport {
	return &Transport{
		reader:   bufio.NewReaderSize(r, 64*1024),
		writer:   w,
		closer:   c,
		tracer:   tracer,
		pending:  make(map[int64]chan *response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
}

// Start begins reading messages in a new goroutine.
func (t *Transport) Start() {
	go t.readLoop()
}

// Done is closed once the transport stops, either by Close or because the
// peer went away.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Err returns the read error that stopped the transport, if any.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readErr
}

// Close closes the transport and releases resources.
func (t *Transport) Close() error {
	if !t.shut(nil) {
		return nil
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// shut marks the transport closed and reports whether this call did it.
func (t *Transport) shut(err error) bool {
	if t.closed.Swap(true) {
		return false
	}
	t.mu.Lock()
	t.readErr = err
	t.pending = make(map[int64]chan *response)
	t.mu.Unlock()
	close(t.done)
	return true
}

// IsClosed returns true if the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Call sends a request and waits for a response.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(&request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(&request{JSONRPC: "2.0", Method: method, Params: params})
}

// OnNotification registers a handler for server notifications. The method
// "*" matches any notification without its own handler.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

// send writes a message with LSP content-length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := fmt.Fprintf(t.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if t.tracer != nil {
		t.tracer(Outgoing, data)
	}
	return nil
}

func (t *Transport) readLoop() {
	for {
		msg, err := t.readMessage()
		if err != nil {
			if errors.Is(err, ErrMissingLength) {
				continue
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				err = nil
			}
			t.shut(err)
			return
		}
		if t.tracer != nil {
			t.tracer(Incoming, msg)
		}
		t.dispatch(msg)
	}
}

// readMessage reads a single LSP message.
func (t *Transport) readMessage() ([]byte, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			contentLength = n
		}
	}

	if contentLength <= 0 {
		return nil, ErrMissingLength
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// dispatch routes a message by the shape of its members.
func (t *Transport) dispatch(data []byte) {
	if !gjson.ValidBytes(data) {
		return
	}
	msg := gjson.ParseBytes(data)
	id := msg.Get("id")
	method := msg.Get("method").String()

	switch {
	case method == "" && id.Exists():
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		t.handleResponse(id, &resp)
	case method != "" && id.Exists():
		t.handleRequest(json.RawMessage(id.Raw), method)
	case method != "":
		t.handleNotification(method, json.RawMessage(msg.Get("params").Raw))
	}
}

func (t *Transport) handleResponse(id gjson.Result, resp *response) {
	if id.Type != gjson.Number {
		return
	}
	key := id.Int()

	t.mu.Lock()
	ch, ok := t.pending[key]
	if ok {
		delete(t.pending, key)
	}
	t.mu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// handleRequest answers server-initiated requests. The controller asks
// nothing of the server beyond the handshake, so every request gets a
// null result.
func (t *Transport) handleRequest(id json.RawMessage, method string) {
	_ = t.send(&response{JSONRPC: "2.0", ID: id, Result: json.RawMessage("null")})
}

func (t *Transport) handleNotification(method string, params json.RawMessage) {
	t.mu.Lock()
	handler, ok := t.handlers[method]
	if !ok {
		handler, ok = t.handlers["*"]
	}
	t.mu.Unlock()

	if ok && handler != nil {
		go handler(method, params)
	}
}
