package feature

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/previewctl/internal/host"
)

// Bundle owns every handle acquired by one activation.
type Bundle struct {
	id      uuid.UUID
	started time.Time

	mu      sync.Mutex
	client  host.Client
	version host.StatusItem
	handles host.Disposables

	once sync.Once
	err  error
}

func newBundle() *Bundle {
	return &Bundle{id: uuid.New(), started: time.Now()}
}

// ID identifies the activation.
func (b *Bundle) ID() string {
	return b.id.String()
}

// Started returns when the activation began.
func (b *Bundle) Started() time.Time {
	return b.started
}

// Client returns the language server client, or nil before it was created.
func (b *Bundle) Client() host.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

func (b *Bundle) setClient(c host.Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = c
}

func (b *Bundle) versionItem() host.StatusItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

func (b *Bundle) setVersionItem(item host.StatusItem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.version = item
}

// Len returns the number of held handles.
func (b *Bundle) Len() int {
	return b.handles.Len()
}

// Released reports whether the bundle has been released.
func (b *Bundle) Released() bool {
	return b.handles.Disposed()
}

func (b *Bundle) hold(d host.Disposable) {
	_ = b.handles.Add(d)
}

// release disposes the handles newest first. Only the first call does work;
// it reports whether this call performed the release.
func (b *Bundle) release() (bool, error) {
	first := false
	b.once.Do(func() {
		first = true
		b.err = b.handles.Dispose()
	})
	return first, b.err
}
