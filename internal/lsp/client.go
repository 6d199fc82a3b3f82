package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
)

// DefaultShutdownTimeout bounds the shutdown request and the wait for the
// process to exit.
const DefaultShutdownTimeout = 2 * time.Second

// Conn is a started server: its stdout, its stdin and a way to stop it.
type Conn struct {
	Reader io.Reader
	Writer io.WriteCloser

	// Stop terminates the server and reaps it.
	Stop func() error
}

// Starter brings a server up.
type Starter func(ctx context.Context) (*Conn, error)

// ExecConfig configures ExecStarter.
type ExecConfig struct {
	Command string
	Args    []string
	Dir     string
	Env     []string

	// Stderr receives the server's standard error.
	Stderr io.Writer

	// Grace is how long Stop waits for a voluntary exit before killing.
	Grace time.Duration
}

// ExecStarter starts the server as a child process.
func ExecStarter(cfg ExecConfig) Starter {
	return func(ctx context.Context) (*Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Dir = cfg.Dir
		cmd.Env = append(os.Environ(), cfg.Env...)
		cmd.Stderr = cfg.Stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			stdin.Close()
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return nil, fmt.Errorf("start process: %w", err)
		}

		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()

		var once sync.Once
		var stopErr error
		stop := func() error {
			once.Do(func() {
				stdin.Close()
				var err error
				select {
				case err = <-exited:
				case <-time.After(cfg.Grace):
					_ = cmd.Process.Kill()
					err = <-exited
				}
				var exitErr *exec.ExitError
				if err != nil && !errors.As(err, &exitErr) {
					stopErr = err
				}
			})
			return stopErr
		}
		return &Conn{Reader: stdout, Writer: stdin, Stop: stop}, nil
	}
}

// Options configures a Client.
type Options struct {
	Command string
	Args    []string
	Dir     string

	// RootURI is sent as the workspace root; empty sends null.
	RootURI string

	// Output receives server stderr and window/logMessage lines.
	Output host.OutputChannel

	// Trace receives every JSON-RPC message.
	Trace host.OutputChannel

	ShutdownTimeout time.Duration

	// Start replaces the default ExecStarter.
	Start Starter

	ClientName    string
	ClientVersion string

	Logger *logging.Logger
}

// Client implements host.Client over a language server.
type Client struct {
	opts   Options
	logger *logging.Logger

	mu      sync.Mutex
	session *session

	version atomic.Value
}

type session struct {
	conn      *Conn
	transport *Transport
	stopping  atomic.Bool
}

// NewClient creates a client. Nothing is started until Initialize.
func NewClient(opts Options) *Client {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.ClientName == "" {
		opts.ClientName = "previewctl"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NullLogger
	}
	c := &Client{opts: opts, logger: logger.WithComponent("lsp")}
	c.version.Store("")
	return c
}

// Initialize starts the server and performs the handshake. The returned
// handle shuts down whichever server the client is running when it is
// disposed, so it stays valid across Restart.
func (c *Client) Initialize(ctx context.Context) (host.Disposable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil, ErrAlreadyStarted
	}
	s, err := c.start(ctx)
	if err != nil {
		return nil, err
	}
	c.session = s
	return host.Once(host.DisposableFunc(c.stop)), nil
}

// Restart shuts the running server down and starts a new one.
func (c *Client) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return ErrNotStarted
	}
	old := c.session
	c.session = nil
	if err := c.shutdown(old); err != nil {
		c.logger.Warn("stop before restart: %v", err)
	}

	s, err := c.start(ctx)
	if err != nil {
		return err
	}
	c.session = s
	return nil
}

// Version reports the server version from the last handshake.
func (c *Client) Version() string {
	return c.version.Load().(string)
}

// Running reports whether a server is up.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && !c.session.transport.IsClosed()
}

func (c *Client) start(ctx context.Context) (*session, error) {
	starter := c.opts.Start
	if starter == nil {
		if c.opts.Command == "" {
			return nil, ErrNoCommand
		}
		var stderr io.Writer
		if c.opts.Output != nil {
			stderr = c.opts.Output
		}
		starter = ExecStarter(ExecConfig{
			Command: c.opts.Command,
			Args:    c.opts.Args,
			Dir:     c.opts.Dir,
			Stderr:  stderr,
			Grace:   c.opts.ShutdownTimeout,
		})
	}

	conn, err := starter(ctx)
	if err != nil {
		return nil, &StartError{Command: c.opts.Command, Err: err}
	}

	s := &session{conn: conn}
	s.transport = NewTransport(conn.Reader, conn.Writer, conn.Writer, c.trace)
	s.transport.OnNotification("window/logMessage", c.logMessage)
	s.transport.Start()

	result, err := c.handshake(ctx, s.transport)
	if err != nil {
		s.stopping.Store(true)
		_ = s.transport.Close()
		_ = conn.Stop()
		return nil, &StartError{Command: c.opts.Command, Err: err}
	}

	version := ""
	name := c.opts.Command
	if result.ServerInfo != nil {
		version = result.ServerInfo.Version
		if result.ServerInfo.Name != "" {
			name = result.ServerInfo.Name
		}
	}
	c.version.Store(version)
	c.appendOutput(fmt.Sprintf("%s %s started", name, version))
	c.logger.Info("server %s %s initialized", name, version)

	go c.monitor(s)
	return s, nil
}

func (c *Client) handshake(ctx context.Context, t *Transport) (*InitializeResult, error) {
	params := InitializeParams{
		ProcessID:    os.Getpid(),
		ClientInfo:   &ClientInfo{Name: c.opts.ClientName, Version: c.opts.ClientVersion},
		Capabilities: json.RawMessage(`{}`),
		Trace:        "off",
	}
	if c.opts.Trace != nil {
		params.Trace = "verbose"
	}
	if c.opts.RootURI != "" {
		root := c.opts.RootURI
		params.RootURI = &root
		params.WorkspaceFolders = []WorkspaceFolder{{URI: root, Name: root}}
	}

	var result InitializeResult
	if err := t.Call(ctx, "initialize", params, &result); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := t.Notify("initialized", struct{}{}); err != nil {
		return nil, fmt.Errorf("initialized: %w", err)
	}
	return &result, nil
}

// monitor reports a server that goes away on its own.
func (c *Client) monitor(s *session) {
	<-s.transport.Done()
	if s.stopping.Load() {
		return
	}
	msg := "server connection closed"
	if err := s.transport.Err(); err != nil {
		msg = fmt.Sprintf("server connection closed: %v", err)
	}
	c.appendOutput(msg)
	c.logger.Warn(msg)
}

func (c *Client) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	c.session = nil
	if s == nil {
		return nil
	}
	return c.shutdown(s)
}

// shutdown runs shutdown/exit and stops the process.
func (c *Client) shutdown(s *session) error {
	s.stopping.Store(true)
	if !s.transport.IsClosed() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.ShutdownTimeout)
		if err := s.transport.Call(ctx, "shutdown", nil, nil); err != nil {
			c.logger.Debug("shutdown request: %v", err)
		}
		cancel()
		_ = s.transport.Notify("exit", nil)
	}
	_ = s.transport.Close()
	err := s.conn.Stop()
	c.version.Store("")
	c.appendOutput("server stopped")
	return err
}

func (c *Client) logMessage(_ string, params json.RawMessage) {
	var p LogMessageParams
	if err := json.Unmarshal(params, &p); err != nil {
		return
	}
	c.appendOutput(p.Message)
}

func (c *Client) appendOutput(line string) {
	if c.opts.Output != nil {
		c.opts.Output.AppendLine(line)
	}
}

func (c *Client) trace(dir Direction, body []byte) {
	if c.opts.Trace == nil {
		return
	}
	c.opts.Trace.AppendLine(traceHeader(time.Now(), dir, body))
	c.opts.Trace.Append(string(pretty.Pretty(body)))
}

// traceHeader describes a message the way editor LSP traces do.
func traceHeader(now time.Time, dir Direction, body []byte) string {
	msg := gjson.ParseBytes(body)
	method := msg.Get("method").String()
	id := msg.Get("id")

	verb := "Sending"
	if dir == Incoming {
		verb = "Received"
	}

	var kind string
	switch {
	case method != "" && id.Exists():
		kind = fmt.Sprintf("request '%s - (%s)'", method, id.Raw)
	case method != "":
		kind = fmt.Sprintf("notification '%s'", method)
	default:
		kind = fmt.Sprintf("response '(%s)'", id.Raw)
	}
	return fmt.Sprintf("[Trace - %s] %s %s.", now.Format("15:04:05.000"), verb, kind)
}
