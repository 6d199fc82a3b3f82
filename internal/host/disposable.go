package host

import (
	"context"
	"errors"
	"sync"
)

// DisposableFunc adapts a function to Disposable.
type DisposableFunc func() error

// Dispose calls f.
func (f DisposableFunc) Dispose() error {
	if f == nil {
		return nil
	}
	return f()
}

// Once wraps d so that only the first Dispose reaches it.
func Once(d Disposable) Disposable {
	var once sync.Once
	return DisposableFunc(func() error {
		var err error
		once.Do(func() {
			if d != nil {
				err = d.Dispose()
			}
		})
		return err
	})
}

// Disposables is an ordered collection released in reverse order of
// addition. It is safe for concurrent use.
type Disposables struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add appends handles. Handles added after Dispose are released at once.
func (d *Disposables) Add(items ...Disposable) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return releaseAll(items)
	}
	for _, item := range items {
		if item != nil {
			d.items = append(d.items, item)
		}
	}
	d.mu.Unlock()
	return nil
}

// Len returns the number of held handles.
func (d *Disposables) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// Disposed reports whether Dispose has been called.
func (d *Disposables) Disposed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// Dispose releases every handle exactly once, newest first, and joins the
// release errors. Later calls return nil.
func (d *Disposables) Dispose() error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil
	}
	d.disposed = true
	items := d.items
	d.items = nil
	d.mu.Unlock()

	return releaseAll(items)
}

func releaseAll(items []Disposable) error {
	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		if items[i] == nil {
			continue
		}
		if err := items[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CommandRestarter requests a host restart by executing a host command.
type CommandRestarter struct {
	Commands  Commands
	CommandID string
}

// RequestRestart implements Restarter.
func (r CommandRestarter) RequestRestart(ctx context.Context) error {
	_, err := r.Commands.ExecuteCommand(ctx, r.CommandID)
	return err
}
