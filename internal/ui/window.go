// Package ui is a line-oriented terminal implementation of host.Window.
//
// Output channels buffer in memory and may be mirrored to files. Status
// items render as a one-line status bar. Quick picks and button messages
// are numbered prompts answered by lines passed to Offer, so a single
// input reader serves both prompts and the command prompt.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
)

// ErrClosed is returned by prompts raised after Close.
var ErrClosed = errors.New("window closed")

// Options configures a Window.
type Options struct {
	// Out receives everything the window renders. Defaults to os.Stdout.
	Out io.Writer

	// LogDir, when set, mirrors each output channel to a file there.
	LogDir string

	Logger *logging.Logger
}

// Window implements host.Window on a terminal.
type Window struct {
	out    io.Writer
	outMu  sync.Mutex
	styles styles
	logDir string
	logger *logging.Logger

	mu       sync.Mutex
	channels map[string]*Channel
	items    map[string]*StatusItem
	prompts  []*prompt
	closed   bool
}

// New creates a window.
func New(opts Options) *Window {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Window{
		out:      opts.Out,
		styles:   newStyles(opts.Out),
		logDir:   opts.LogDir,
		logger:   logger.WithComponent("ui"),
		channels: make(map[string]*Channel),
		items:    make(map[string]*StatusItem),
	}
}

func (w *Window) println(s string) {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	fmt.Fprintln(w.out, s)
}

// CreateOutputChannel implements host.Window. A second channel with the
// same name replaces the first in Channel lookups.
func (w *Window) CreateOutputChannel(name string) host.OutputChannel {
	ch := &Channel{name: name, window: w}
	if w.logDir != "" {
		path := filepath.Join(w.logDir, channelFileName(name))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			w.logger.Warn("mirror channel %q: %v", name, err)
		} else {
			ch.mirror = f
		}
	}

	w.mu.Lock()
	w.channels[name] = ch
	w.mu.Unlock()
	return ch
}

// Channel returns the live output channel named name, or nil.
func (w *Window) Channel(name string) *Channel {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channels[name]
}

// CreateStatusItem implements host.Window.
func (w *Window) CreateStatusItem(id string, alignment host.Alignment, priority int) host.StatusItem {
	item := &StatusItem{id: id, alignment: alignment, priority: priority, window: w}
	w.mu.Lock()
	w.items[id] = item
	w.mu.Unlock()
	return item
}

// StatusBar renders the visible status items: left-aligned items first,
// each side ordered by descending priority.
func (w *Window) StatusBar() string {
	w.mu.Lock()
	visible := make([]*StatusItem, 0, len(w.items))
	for _, item := range w.items {
		if item.isVisible() {
			visible = append(visible, item)
		}
	}
	w.mu.Unlock()

	sort.SliceStable(visible, func(i, j int) bool {
		a, b := visible[i], visible[j]
		if a.alignment != b.alignment {
			return a.alignment == host.AlignLeft
		}
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.id < b.id
	})

	parts := make([]string, 0, len(visible))
	for _, item := range visible {
		parts = append(parts, w.styles.Item.Render(renderIcons(item.Text())))
	}
	return strings.Join(parts, w.styles.Muted.Render("│"))
}

func (w *Window) statusChanged() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	bar := w.StatusBar()
	if bar == "" {
		bar = "(no status)"
	}
	w.println(w.styles.StatusBar.Render("status: ") + bar)
}

// ShowQuickPick implements host.Window. The answer is a 1-based index;
// an empty line, "q" or "esc" dismisses.
func (w *Window) ShowQuickPick(ctx context.Context, items []host.QuickPickItem, placeholder string) (int, error) {
	var b strings.Builder
	b.WriteString(w.styles.Title.Render(placeholder))
	for i, item := range items {
		fmt.Fprintf(&b, "\n  %s %s", w.styles.Choice.Render(strconv.Itoa(i+1)+")"), item.Label)
		if item.Description != "" {
			b.WriteString("  " + w.styles.Muted.Render(item.Description))
		}
	}
	b.WriteString("\n" + w.styles.Muted.Render("pick a number, or press enter to dismiss"))

	p := &prompt{
		text:   b.String(),
		answer: make(chan int, 1),
		parse: func(line string) (int, bool) {
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > len(items) {
				return 0, false
			}
			return n - 1, true
		},
	}
	return w.ask(ctx, p)
}

// ShowInformationMessage implements host.Window.
func (w *Window) ShowInformationMessage(ctx context.Context, message string, buttons ...string) (string, error) {
	return w.showMessage(ctx, w.styles.Info.Render("info:")+" "+message, buttons)
}

// ShowErrorMessage implements host.Window.
func (w *Window) ShowErrorMessage(ctx context.Context, message string, buttons ...string) (string, error) {
	return w.showMessage(ctx, w.styles.Error.Render("error:")+" "+message, buttons)
}

func (w *Window) showMessage(ctx context.Context, text string, buttons []string) (string, error) {
	if len(buttons) == 0 {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return "", ErrClosed
		}
		w.println(text)
		return "", nil
	}

	var b strings.Builder
	b.WriteString(text)
	for i, button := range buttons {
		fmt.Fprintf(&b, "\n  %s %s", w.styles.Choice.Render(strconv.Itoa(i+1)+")"), button)
	}
	b.WriteString("\n" + w.styles.Muted.Render("choose a button, or press enter to dismiss"))

	p := &prompt{
		text:   b.String(),
		answer: make(chan int, 1),
		parse: func(line string) (int, bool) {
			if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(buttons) {
				return n - 1, true
			}
			for i, button := range buttons {
				if strings.EqualFold(line, button) {
					return i, true
				}
			}
			return 0, false
		},
	}
	i, err := w.ask(ctx, p)
	if err != nil || i < 0 {
		return "", err
	}
	return buttons[i], nil
}

// Pending reports how many prompts are waiting for an answer.
func (w *Window) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.prompts)
}

// Offer routes an input line to the oldest pending prompt. It reports
// false when no prompt is waiting, leaving the line to the caller.
func (w *Window) Offer(line string) bool {
	line = strings.TrimSpace(line)

	w.mu.Lock()
	if len(w.prompts) == 0 {
		w.mu.Unlock()
		return false
	}
	p := w.prompts[0]

	choice := -1
	switch strings.ToLower(line) {
	case "", "q", "esc":
	default:
		var ok bool
		if choice, ok = p.parse(line); !ok {
			w.mu.Unlock()
			w.println(w.styles.Muted.Render(fmt.Sprintf("%q is not one of the choices", line)))
			return true
		}
	}
	w.prompts = w.prompts[1:]
	next := w.front()
	w.mu.Unlock()

	p.resolve(choice)
	if next != nil {
		w.println(next.text)
	}
	return true
}

// CancelPrompts dismisses every pending prompt.
func (w *Window) CancelPrompts() {
	w.mu.Lock()
	pending := w.prompts
	w.prompts = nil
	w.mu.Unlock()

	for _, p := range pending {
		p.resolve(-1)
	}
}

// Close dismisses pending prompts, releases channel mirrors and makes
// later prompts return ErrClosed.
func (w *Window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	channels := make([]*Channel, 0, len(w.channels))
	for _, ch := range w.channels {
		channels = append(channels, ch)
	}
	w.mu.Unlock()

	w.CancelPrompts()

	var errs []error
	for _, ch := range channels {
		errs = append(errs, ch.closeMirror())
	}
	return errors.Join(errs...)
}

func (w *Window) ask(ctx context.Context, p *prompt) (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return -1, ErrClosed
	}
	w.prompts = append(w.prompts, p)
	first := len(w.prompts) == 1
	w.mu.Unlock()

	if first {
		w.println(p.text)
	}

	select {
	case i := <-p.answer:
		return i, nil
	case <-ctx.Done():
		if next := w.remove(p); next != nil {
			w.println(next.text)
		}
		return -1, ctx.Err()
	}
}

// remove drops p and returns the prompt that moved to the front, if any.
func (w *Window) remove(p *prompt) *prompt {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, q := range w.prompts {
		if q == p {
			w.prompts = append(w.prompts[:i:i], w.prompts[i+1:]...)
			if i == 0 {
				return w.front()
			}
			return nil
		}
	}
	return nil
}

// front returns the oldest prompt. Callers hold w.mu.
func (w *Window) front() *prompt {
	if len(w.prompts) == 0 {
		return nil
	}
	return w.prompts[0]
}

type prompt struct {
	text   string
	parse  func(line string) (int, bool)
	answer chan int
	once   sync.Once
}

func (p *prompt) resolve(i int) {
	p.once.Do(func() { p.answer <- i })
}

func channelFileName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-") + ".log"
}
