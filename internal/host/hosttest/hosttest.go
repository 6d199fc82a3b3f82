// Package hosttest provides in-memory host collaborators for tests.
package hosttest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dshills/previewctl/internal/host"
)

// Message is a message shown through the window.
type Message struct {
	Error   bool
	Text    string
	Buttons []string
}

// Window is an in-memory host.Window.
type Window struct {
	mu       sync.Mutex
	channels map[string]*Channel
	items    map[string]*StatusItem
	messages []Message

	// Pick chooses a quick pick entry; nil dismisses every pick.
	Pick func(items []host.QuickPickItem) int

	// Answer chooses a message button; nil dismisses every message.
	Answer func(msg Message) string
}

// NewWindow creates an empty window.
func NewWindow() *Window {
	return &Window{
		channels: make(map[string]*Channel),
		items:    make(map[string]*StatusItem),
	}
}

// CreateOutputChannel implements host.Window.
func (w *Window) CreateOutputChannel(name string) host.OutputChannel {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := &Channel{name: name}
	w.channels[name] = ch
	return ch
}

// CreateStatusItem implements host.Window.
func (w *Window) CreateStatusItem(id string, _ host.Alignment, _ int) host.StatusItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	item := &StatusItem{id: id}
	w.items[id] = item
	return item
}

// ShowQuickPick implements host.Window.
func (w *Window) ShowQuickPick(_ context.Context, items []host.QuickPickItem, _ string) (int, error) {
	if w.Pick == nil {
		return -1, nil
	}
	return w.Pick(items), nil
}

// ShowInformationMessage implements host.Window.
func (w *Window) ShowInformationMessage(_ context.Context, message string, buttons ...string) (string, error) {
	return w.show(Message{Text: message, Buttons: buttons}), nil
}

// ShowErrorMessage implements host.Window.
func (w *Window) ShowErrorMessage(_ context.Context, message string, buttons ...string) (string, error) {
	return w.show(Message{Error: true, Text: message, Buttons: buttons}), nil
}

func (w *Window) show(msg Message) string {
	w.mu.Lock()
	w.messages = append(w.messages, msg)
	answer := w.Answer
	w.mu.Unlock()

	if answer == nil || len(msg.Buttons) == 0 {
		return ""
	}
	return answer(msg)
}

// Messages returns every message shown so far.
func (w *Window) Messages() []Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Message(nil), w.messages...)
}

// Channel returns the output channel created with name.
func (w *Window) Channel(name string) *Channel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channels[name]
}

// Item returns the status item created with id.
func (w *Window) Item(id string) *StatusItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.items[id]
}

// VisibleItems returns the ids of shown, undisposed status items.
func (w *Window) VisibleItems() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ids []string
	for id, item := range w.items {
		if item.Visible() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Channel is an in-memory host.OutputChannel.
type Channel struct {
	mu       sync.Mutex
	name     string
	buf      strings.Builder
	shown    int
	disposed bool
}

// Name implements host.OutputChannel.
func (c *Channel) Name() string { return c.name }

// Append implements host.OutputChannel.
func (c *Channel) Append(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(text)
}

// AppendLine implements host.OutputChannel.
func (c *Channel) AppendLine(line string) {
	c.Append(line + "\n")
}

// Write implements host.OutputChannel.
func (c *Channel) Write(p []byte) (int, error) {
	c.Append(string(p))
	return len(p), nil
}

// Show implements host.OutputChannel.
func (c *Channel) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown++
}

// Dispose implements host.Disposable.
func (c *Channel) Dispose() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
	return nil
}

// Text returns everything written to the channel.
func (c *Channel) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Shown returns how many times Show was called.
func (c *Channel) Shown() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shown
}

// Disposed reports whether the channel was disposed.
func (c *Channel) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// StatusItem is an in-memory host.StatusItem.
type StatusItem struct {
	mu       sync.Mutex
	id       string
	text     string
	tooltip  string
	command  string
	visible  bool
	disposed bool
}

// ID implements host.StatusItem.
func (s *StatusItem) ID() string { return s.id }

// SetText implements host.StatusItem.
func (s *StatusItem) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
}

// SetTooltip implements host.StatusItem.
func (s *StatusItem) SetTooltip(tooltip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tooltip = tooltip
}

// SetCommand implements host.StatusItem.
func (s *StatusItem) SetCommand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.command = id
}

// Show implements host.StatusItem.
func (s *StatusItem) Show() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = true
}

// Hide implements host.StatusItem.
func (s *StatusItem) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
}

// Dispose implements host.Disposable.
func (s *StatusItem) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = false
	s.disposed = true
	return nil
}

// Text returns the item text.
func (s *StatusItem) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Command returns the item command.
func (s *StatusItem) Command() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.command
}

// Visible reports whether the item is shown and not disposed.
func (s *StatusItem) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible && !s.disposed
}

// ErrClient is the default failure of a failing Client.
var ErrClient = errors.New("client failure")

// Client is a scripted host.Client.
type Client struct {
	mu sync.Mutex

	InitErr    error
	RestartErr error
	StopErr    error
	Ver        string

	// Hold, when set, delays Initialize until it is closed.
	Hold chan struct{}

	inits    int
	stops    int
	restarts int
}

// Initialize implements host.Client.
func (c *Client) Initialize(ctx context.Context) (host.Disposable, error) {
	c.mu.Lock()
	hold := c.Hold
	c.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.InitErr != nil {
		return nil, c.InitErr
	}
	c.inits++
	return host.DisposableFunc(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stops++
		return c.StopErr
	}), nil
}

// Restart implements host.Client.
func (c *Client) Restart(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restarts++
	return c.RestartErr
}

// Version implements host.Client.
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Ver
}

// Counts returns the number of initializations, stops and restarts.
func (c *Client) Counts() (inits, stops, restarts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits, c.stops, c.restarts
}

// Restarter records restart requests.
type Restarter struct {
	mu       sync.Mutex
	requests int
	Err      error

	// Requested, when set, receives a value per request.
	Requested chan struct{}
}

// RequestRestart implements host.Restarter.
func (r *Restarter) RequestRestart(context.Context) error {
	r.mu.Lock()
	r.requests++
	ch := r.Requested
	err := r.Err
	r.mu.Unlock()

	if ch != nil {
		ch <- struct{}{}
	}
	return err
}

// Requests returns the number of restart requests.
func (r *Restarter) Requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests
}
