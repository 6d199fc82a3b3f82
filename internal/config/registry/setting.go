// Package registry holds the definitions of every setting the add-on
// contributes: type, default, documentation and restart metadata.
package registry

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// SettingType represents the data type of a setting.
type SettingType uint8

const (
	// TypeString represents a string value.
	TypeString SettingType = iota
	// TypeBool represents a boolean value.
	TypeBool
	// TypeNumber represents a numeric value.
	TypeNumber
	// TypeEnum represents a string from a fixed set.
	TypeEnum
	// TypeArray represents an array value.
	TypeArray
)

// String returns the string representation of the type.
func (t SettingType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeEnum:
		return "enum"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// Setting defines a configuration setting with its metadata.
type Setting struct {
	// Path is the dot-separated path (e.g., "typescript.experimental.useTsgo").
	Path string

	// Type is the setting's data type.
	Type SettingType

	// Default is the default value.
	Default any

	// Description is human-readable documentation.
	Description string

	// Enum lists allowed values for enum types.
	Enum []string

	// RequiresRestart marks settings whose effect the host only observes
	// after its extension subsystem restarts.
	RequiresRestart bool

	// LiveSince is the first host version (semver, "v"-prefixed) able to apply
	// a RequiresRestart setting without a restart. Empty means never.
	LiveSince string
}

// NeedsRestart reports whether changing the setting on a host running
// hostVersion requires a restart. An unparsable host version is treated as
// predating LiveSince.
func (s *Setting) NeedsRestart(hostVersion string) bool {
	if !s.RequiresRestart {
		return false
	}
	if s.LiveSince == "" {
		return true
	}
	v := canonicalVersion(hostVersion)
	if !semver.IsValid(v) {
		return true
	}
	return semver.Compare(v, canonicalVersion(s.LiveSince)) < 0
}

// Validate checks if a value is valid for this setting.
func (s *Setting) Validate(value any) error {
	switch s.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case TypeNumber:
		switch value.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case TypeEnum:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		for _, opt := range s.Enum {
			if opt == str {
				return nil
			}
		}
		return fmt.Errorf("value must be one of: %s", strings.Join(s.Enum, ", "))
	case TypeArray:
		switch value.(type) {
		case []any, []string:
		default:
			return fmt.Errorf("expected array, got %T", value)
		}
	}
	return nil
}

// canonicalVersion accepts host versions with or without the "v" prefix.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
