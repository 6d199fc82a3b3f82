package ui

import (
	"os"
	"strings"
	"sync"
)

// maxChannelBytes bounds the in-memory buffer of a channel. Older text is
// dropped a line at a time.
const maxChannelBytes = 1 << 20

// Channel is an output channel of a Window.
type Channel struct {
	name   string
	window *Window

	mu       sync.Mutex
	buf      []byte
	mirror   *os.File
	disposed bool
}

// Name implements host.OutputChannel.
func (c *Channel) Name() string { return c.name }

// Append implements host.OutputChannel.
func (c *Channel) Append(text string) {
	_, _ = c.Write([]byte(text))
}

// AppendLine implements host.OutputChannel.
func (c *Channel) AppendLine(line string) {
	c.Append(line + "\n")
}

// Write implements host.OutputChannel and io.Writer, so a channel can
// take a server's stderr directly.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return len(p), nil
	}

	c.buf = append(c.buf, p...)
	if over := len(c.buf) - maxChannelBytes; over > 0 {
		cut := over
		if i := strings.IndexByte(string(c.buf[over:]), '\n'); i >= 0 {
			cut = over + i + 1
		}
		c.buf = append(c.buf[:0], c.buf[cut:]...)
	}

	if c.mirror != nil {
		if _, err := c.mirror.Write(p); err != nil {
			c.window.logger.Warn("mirror channel %q: %v", c.name, err)
			c.mirror.Close()
			c.mirror = nil
		}
	}
	return len(p), nil
}

// Text returns the buffered channel content.
func (c *Channel) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.buf)
}

// Show implements host.OutputChannel by printing the buffer under a
// header.
func (c *Channel) Show() {
	text := strings.TrimRight(c.Text(), "\n")
	if text == "" {
		text = c.window.styles.Muted.Render("(empty)")
	}
	c.window.println(c.window.styles.Title.Render("── "+c.name+" ──") + "\n" + text)
}

// Dispose implements host.Disposable.
func (c *Channel) Dispose() error {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()

	c.window.mu.Lock()
	if c.window.channels[c.name] == c {
		delete(c.window.channels, c.name)
	}
	c.window.mu.Unlock()

	return c.closeMirror()
}

func (c *Channel) closeMirror() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mirror == nil {
		return nil
	}
	err := c.mirror.Close()
	c.mirror = nil
	return err
}
