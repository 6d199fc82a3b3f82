// Package settings reads and writes JSON settings files.
//
// Files use the editor convention of flat dotted keys at the top level:
//
//	{
//	    "typescript.experimental.useTsgo": true
//	}
//
// Nested objects are accepted when reading. Writes edit the document in place
// so unrelated keys and the user's formatting survive.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/previewctl/internal/config/layer"
)

// ErrInvalidJSON is returned when a settings file is not valid JSON.
var ErrInvalidJSON = errors.New("invalid settings JSON")

// ParseError describes a settings file that could not be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// File is a settings file on disk. The file need not exist.
type File struct {
	path string
}

// NewFile returns a handle on the settings file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the file into a nested map. A missing or empty file yields an
// empty map.
func (f *File) Load() (map[string]any, error) {
	data, err := f.read()
	if err != nil {
		return nil, err
	}
	return Parse(f.path, data)
}

// Parse decodes settings JSON into a nested map.
func Parse(source string, data []byte) (map[string]any, error) {
	result := make(map[string]any)
	if len(strings.TrimSpace(string(data))) == 0 {
		return result, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: source, Err: ErrInvalidJSON}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, &ParseError{Path: source, Err: fmt.Errorf("%w: top level must be an object", ErrInvalidJSON)}
	}

	flat := make(map[string]any)
	doc.ForEach(func(key, value gjson.Result) bool {
		flat[key.String()] = value.Value()
		return true
	})
	return layer.UnflattenMap(flat), nil
}

// Set writes value at key. If the key is currently stored as a nested
// object path it is updated there, otherwise as a flat top-level key.
func (f *File) Set(key string, value any) error {
	data, err := f.read()
	if err != nil {
		return err
	}

	created := len(strings.TrimSpace(string(data))) == 0
	if created {
		data = []byte("{}")
	} else if !gjson.ValidBytes(data) {
		return &ParseError{Path: f.path, Err: ErrInvalidJSON}
	}

	out, err := sjson.SetBytes(data, locate(data, key), value)
	if err != nil {
		return fmt.Errorf("set %s in %s: %w", key, f.path, err)
	}
	if created {
		out = pretty.PrettyOptions(out, &pretty.Options{Indent: "    ", Width: 80})
	}
	return f.write(out)
}

// Delete removes key from the file. Deleting a missing key is not an error.
func (f *File) Delete(key string) error {
	data, err := f.read()
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if !gjson.ValidBytes(data) {
		return &ParseError{Path: f.path, Err: ErrInvalidJSON}
	}

	path := locate(data, key)
	if !gjson.GetBytes(data, path).Exists() {
		return nil
	}
	out, err := sjson.DeleteBytes(data, path)
	if err != nil {
		return fmt.Errorf("delete %s in %s: %w", key, f.path, err)
	}
	return f.write(out)
}

// locate returns the gjson/sjson path at which key lives in data, preferring
// the flat form.
func locate(data []byte, key string) string {
	flat := escapeKey(key)
	if gjson.GetBytes(data, flat).Exists() {
		return flat
	}
	if gjson.GetBytes(data, key).Exists() {
		return key
	}
	return flat
}

// escapeKey escapes the path syntax characters of a literal key.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (f *File) read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading settings file %s: %w", f.path, err)
	}
	return data, nil
}

// write replaces the file atomically.
func (f *File) write(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("writing settings file %s: %w", f.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing settings file %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing settings file %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing settings file %s: %w", f.path, err)
	}
	return nil
}
