// Package store is the scoped settings service: built-in defaults from the
// setting registry layered under one JSON settings file per writable scope.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/previewctl/internal/config/layer"
	"github.com/dshills/previewctl/internal/config/notify"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/settings"
	"github.com/dshills/previewctl/internal/config/watcher"
	"github.com/dshills/previewctl/internal/host"
	"github.com/dshills/previewctl/internal/logging"
)

// Store errors.
var (
	// ErrScopeNotWritable is returned when updating the default scope.
	ErrScopeNotWritable = errors.New("scope is not writable")

	// ErrNoSettingsFile is returned when a scope has no backing file, for
	// example a workspace folder write with no folder open.
	ErrNoSettingsFile = errors.New("no settings file for scope")
)

// Change sources.
const (
	SourceUpdate = "update"
	SourceFile   = "file"
)

// WriteError reports a failed settings write.
type WriteError struct {
	Section string
	Scope   layer.Scope
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s at %s scope: %v", e.Section, e.Scope, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Paths maps writable scopes to settings files.
type Paths map[layer.Scope]string

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store implements host.Configuration.
type Store struct {
	writeMu sync.Mutex

	layers   *layer.Manager
	files    map[layer.Scope]*settings.File
	registry *registry.Registry
	notifier *notify.Notifier
	logger   *logging.Logger
}

// New creates a store over the given settings files and loads them.
// Scopes missing from paths have no file and cannot be written.
func New(reg *registry.Registry, paths Paths, opts ...Option) (*Store, error) {
	if reg == nil {
		reg = registry.NewWithDefaults()
	}
	s := &Store{
		layers:   layer.NewManager(),
		files:    make(map[layer.Scope]*settings.File),
		registry: reg,
		notifier: notify.New(),
		logger:   logging.NullLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("config")

	s.layers.AddLayer(layer.NewLayerWithData(layer.ScopeDefault, layer.UnflattenMap(reg.Defaults())))
	for scope, path := range paths {
		if !scope.Writable() {
			return nil, fmt.Errorf("settings file for %s scope: %w", scope, ErrScopeNotWritable)
		}
		if path == "" {
			continue
		}
		s.files[scope] = settings.NewFile(path)
	}

	for _, scope := range layer.Scopes {
		f, ok := s.files[scope]
		if !ok {
			continue
		}
		data, err := f.Load()
		if err != nil {
			return nil, fmt.Errorf("load %s settings: %w", scope, err)
		}
		s.layers.AddLayer(layer.NewLayerWithData(scope, data))
	}
	return s, nil
}

// Registry returns the setting registry backing validation.
func (s *Store) Registry() *registry.Registry {
	return s.registry
}

// File returns the settings file of a scope, or nil.
func (s *Store) File(scope layer.Scope) *settings.File {
	return s.files[scope]
}

// Inspect implements host.Configuration.
func (s *Store) Inspect(section string) layer.Inspection {
	return s.layers.Inspect(section)
}

// Get implements host.Configuration.
func (s *Store) Get(section string) (any, bool) {
	v, _, ok := s.layers.Get(section)
	return v, ok
}

// GetBool returns the effective boolean value of section.
func (s *Store) GetBool(section string) (value bool, ok bool) {
	v, found := s.Get(section)
	if !found {
		return false, false
	}
	b, isBool := v.(bool)
	return b, isBool
}

// Update implements host.Configuration. Unset scope writes the global
// settings file.
func (s *Store) Update(ctx context.Context, section string, value any, scope layer.Scope) error {
	if scope == layer.ScopeUnset {
		scope = layer.ScopeGlobal
	}
	if !scope.Writable() {
		return &WriteError{Section: section, Scope: scope, Err: ErrScopeNotWritable}
	}
	if value != nil {
		if err := s.registry.Validate(section, value); err != nil {
			return &WriteError{Section: section, Scope: scope, Err: err}
		}
	}
	f, ok := s.files[scope]
	if !ok {
		return &WriteError{Section: section, Scope: scope, Err: ErrNoSettingsFile}
	}
	if err := ctx.Err(); err != nil {
		return &WriteError{Section: section, Scope: scope, Err: err}
	}

	s.writeMu.Lock()
	old := s.layers.Inspect(section).Value(scope)

	var err error
	if value == nil {
		err = f.Delete(section)
	} else {
		err = f.Set(section, value)
	}
	if err != nil {
		s.writeMu.Unlock()
		return &WriteError{Section: section, Scope: scope, Err: err}
	}

	if value == nil {
		_, err = s.layers.Delete(scope, section)
	} else {
		err = s.layers.Set(scope, section, value)
	}
	s.writeMu.Unlock()
	if err != nil {
		return &WriteError{Section: section, Scope: scope, Err: err}
	}

	if layer.ValuesEqual(old, value) {
		return nil
	}
	s.logger.Debug("%s updated at %s scope", section, scope)
	s.notifier.Notify(newChange(section, scope, old, value, SourceUpdate))
	return nil
}

// OnDidChange implements host.Configuration.
func (s *Store) OnDidChange(observer notify.Observer) host.Disposable {
	return s.notifier.Subscribe(observer)
}

// Reload rereads the settings file of a scope and emits one change per
// changed setting. A file that fails to parse leaves the layer untouched.
func (s *Store) Reload(scope layer.Scope) error {
	f, ok := s.files[scope]
	if !ok {
		return fmt.Errorf("reload %s: %w", scope, ErrNoSettingsFile)
	}
	s.writeMu.Lock()
	data, err := f.Load()
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("reload %s settings: %w", scope, err)
	}
	var before map[string]any
	if l := s.layers.Layer(scope); l != nil {
		before = l.Data
	}
	changed := s.layers.Replace(scope, data)
	s.writeMu.Unlock()

	sort.Strings(changed)
	for _, path := range changed {
		oldVal, _ := layer.GetByPath(before, path)
		newVal, _ := layer.GetByPath(data, path)
		s.notifier.Notify(newChange(path, scope, oldVal, newVal, SourceFile))
	}
	if len(changed) > 0 {
		s.logger.Info("reloaded %s settings: %d changed", scope, len(changed))
	}
	return nil
}

// Watch registers every settings file with w and reloads the owning scope
// on change. Files whose directory does not exist yet are skipped.
func (s *Store) Watch(w *watcher.Watcher) error {
	byPath := make(map[string]layer.Scope, len(s.files))
	for scope, f := range s.files {
		if err := w.Watch(f.Path()); err != nil {
			if errors.Is(err, watcher.ErrDirNotExist) {
				s.logger.Debug("not watching %s settings: %s", scope, f.Path())
				continue
			}
			return err
		}
		abs, err := filepath.Abs(f.Path())
		if err != nil {
			return err
		}
		byPath[abs] = scope
	}

	w.OnChange(func(ev watcher.Event) {
		scope, ok := byPath[ev.Path]
		if !ok {
			return
		}
		if err := s.Reload(scope); err != nil {
			s.logger.Warn("%v", err)
		}
	})
	return nil
}

// Close drops all change subscriptions.
func (s *Store) Close() {
	s.notifier.Close()
}

func newChange(path string, scope layer.Scope, oldVal, newVal any, source string) notify.Change {
	ct := notify.ChangeSet
	if newVal == nil {
		ct = notify.ChangeDelete
	}
	return notify.Change{
		Path:     path,
		Scope:    scope,
		Type:     ct,
		OldValue: oldVal,
		NewValue: newVal,
		Source:   source,
	}
}
