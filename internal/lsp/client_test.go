package lsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/previewctl/internal/host/hosttest"
)

// fakeServer speaks just enough of the protocol for the handshake.
type fakeServer struct {
	version string
	initErr bool

	mu      sync.Mutex
	methods []string
	starts  int
	stops   int
}

func (s *fakeServer) start(context.Context) (*Conn, error) {
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	s.mu.Lock()
	s.starts++
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.serve(&peer{r: bufio.NewReader(serverR), w: serverW})
	}()

	return &Conn{
		Reader: clientR,
		Writer: clientW,
		Stop: func() error {
			clientR.Close()
			serverR.Close()
			<-done
			s.mu.Lock()
			s.stops++
			s.mu.Unlock()
			return nil
		},
	}, nil
}

func (s *fakeServer) serve(p *peer) {
	defer p.w.Close()
	for {
		msg, err := readFrame(p.r)
		if err != nil {
			return
		}
		method, _ := msg["method"].(string)
		s.mu.Lock()
		s.methods = append(s.methods, method)
		s.mu.Unlock()

		switch method {
		case "initialize":
			if s.initErr {
				fmt.Fprint(p.w, frame(fmt.Sprintf(`{"jsonrpc":"2.0","id":%v,"error":{"code":-32603,"message":"boom"}}`, msg["id"])))
				continue
			}
			fmt.Fprint(p.w, frame(`{"jsonrpc":"2.0","method":"window/logMessage","params":{"type":3,"message":"hello from tsgo"}}`))
			fmt.Fprint(p.w, frame(fmt.Sprintf(`{"jsonrpc":"2.0","id":%v,"result":{"capabilities":{},"serverInfo":{"name":"tsgo","version":%q}}}`, msg["id"], s.version)))
		case "shutdown":
			fmt.Fprint(p.w, frame(fmt.Sprintf(`{"jsonrpc":"2.0","id":%v,"result":null}`, msg["id"])))
		case "exit":
			return
		}
	}
}

func (s *fakeServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

func (s *fakeServer) counts() (starts, stops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func newTestClient(s *fakeServer) (*Client, *hosttest.Channel, *hosttest.Channel) {
	w := hosttest.NewWindow()
	output := w.CreateOutputChannel("out").(*hosttest.Channel)
	trace := w.CreateOutputChannel("trace").(*hosttest.Channel)
	c := NewClient(Options{
		Command:         "tsgo",
		Output:          output,
		Trace:           trace,
		Start:           s.start,
		ShutdownTimeout: time.Second,
	})
	return c, output, trace
}

func TestClient_InitializeAndDispose(t *testing.T) {
	s := &fakeServer{version: "7.0.0-dev.20250101"}
	c, output, trace := newTestClient(s)

	stop, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if got := c.Version(); got != s.version {
		t.Errorf("Version() = %q, want %q", got, s.version)
	}
	if !c.Running() {
		t.Error("Running() = false after Initialize")
	}

	if err := stop.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if err := stop.Dispose(); err != nil {
		t.Fatalf("second Dispose() error = %v", err)
	}

	want := []string{"initialize", "initialized", "shutdown", "exit"}
	if got := s.seen(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("server saw %v, want %v", got, want)
	}
	if starts, stops := s.counts(); starts != 1 || stops != 1 {
		t.Errorf("starts/stops = %d/%d, want 1/1", starts, stops)
	}
	if c.Running() || c.Version() != "" {
		t.Errorf("Running() = %v, Version() = %q after dispose", c.Running(), c.Version())
	}

	text := output.Text()
	for _, want := range []string{"tsgo 7.0.0-dev.20250101 started", "server stopped"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if !strings.Contains(trace.Text(), "Sending request 'initialize - (1)'") {
		t.Errorf("trace missing initialize request:\n%s", trace.Text())
	}
}

func TestClient_LogMessageReachesOutput(t *testing.T) {
	s := &fakeServer{version: "7.0.0"}
	c, output, _ := newTestClient(s)

	stop, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer stop.Dispose()

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(output.Text(), "hello from tsgo") {
		if time.Now().After(deadline) {
			t.Fatalf("log message not forwarded:\n%s", output.Text())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_InitializeTwice(t *testing.T) {
	s := &fakeServer{version: "7.0.0"}
	c, _, _ := newTestClient(s)

	stop, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	defer stop.Dispose()

	if _, err := c.Initialize(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestClient_HandshakeFailure(t *testing.T) {
	s := &fakeServer{initErr: true}
	c, _, _ := newTestClient(s)

	_, err := c.Initialize(context.Background())
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Initialize() error = %v, want *StartError", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInternalError {
		t.Errorf("Initialize() error = %v, want rpc internal error", err)
	}
	if _, stops := s.counts(); stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
	if c.Running() {
		t.Error("Running() = true after failed handshake")
	}
}

func TestClient_Restart(t *testing.T) {
	s := &fakeServer{version: "7.0.0"}
	c, _, _ := newTestClient(s)

	if err := c.Restart(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Restart() before Initialize = %v, want ErrNotStarted", err)
	}

	stop, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := c.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if starts, stops := s.counts(); starts != 2 || stops != 1 {
		t.Errorf("after restart starts/stops = %d/%d, want 2/1", starts, stops)
	}
	if c.Version() != "7.0.0" {
		t.Errorf("Version() = %q after restart", c.Version())
	}

	if err := stop.Dispose(); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if _, stops := s.counts(); stops != 2 {
		t.Errorf("stops = %d, want 2: the original handle stops the restarted server", stops)
	}
}

func TestClient_NoCommand(t *testing.T) {
	c := NewClient(Options{})
	if _, err := c.Initialize(context.Background()); !errors.Is(err, ErrNoCommand) {
		t.Errorf("Initialize() error = %v, want ErrNoCommand", err)
	}
}

func TestTraceHeader(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC)
	tests := []struct {
		dir  Direction
		body string
		want string
	}{
		{Outgoing, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, "[Trace - 03:04:05.006] Sending request 'initialize - (1)'."},
		{Outgoing, `{"jsonrpc":"2.0","method":"initialized"}`, "[Trace - 03:04:05.006] Sending notification 'initialized'."},
		{Incoming, `{"jsonrpc":"2.0","id":1,"result":{}}`, "[Trace - 03:04:05.006] Received response '(1)'."},
	}
	for _, tt := range tests {
		if got := traceHeader(now, tt.dir, []byte(tt.body)); got != tt.want {
			t.Errorf("traceHeader(%s) = %q, want %q", tt.body, got, tt.want)
		}
	}
}
