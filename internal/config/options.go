package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/previewctl/internal/config/layer"
	"github.com/dshills/previewctl/internal/logging"
)

// FileName is the default options file name.
const FileName = "previewctl.toml"

// ErrInvalidOptions is returned when options fail validation.
var ErrInvalidOptions = errors.New("invalid options")

// Duration is a time.Duration that reads from TOML strings like "100ms".
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Options configures the controller process.
type Options struct {
	Log      LogOptions      `toml:"log"`
	Server   ServerOptions   `toml:"server"`
	Restart  RestartOptions  `toml:"restart"`
	Settings SettingsOptions `toml:"settings"`
	Host     HostOptions     `toml:"host"`
	Metrics  MetricsOptions  `toml:"metrics"`
}

// LogOptions configures logging.
type LogOptions struct {
	Level string `toml:"level"`

	// File receives log output in addition to the terminal when set.
	File string `toml:"file"`

	// Channels is a directory mirroring each output channel to a file.
	Channels string `toml:"channels"`
}

// ServerOptions configures the language server process.
type ServerOptions struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`

	// ShutdownTimeout bounds the shutdown request on dispose.
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// RestartOptions configures the restart prompt.
type RestartOptions struct {
	// PromptDelay is how long to wait before prompting for a restart.
	PromptDelay Duration `toml:"prompt_delay"`
}

// SettingsOptions locates the JSON settings files of each scope.
type SettingsOptions struct {
	User            string `toml:"user"`
	Workspace       string `toml:"workspace"`
	WorkspaceFolder string `toml:"workspace_folder"`

	// Watch reloads settings files edited outside the process.
	Watch bool `toml:"watch"`
}

// HostOptions describes the emulated host.
type HostOptions struct {
	Version string `toml:"version"`
	Mode    string `toml:"mode"`
}

// MetricsOptions configures the metrics endpoint.
type MetricsOptions struct {
	// Addr serves /metrics when non-empty, e.g. "127.0.0.1:9464".
	Addr string `toml:"addr"`
}

// Default returns options with every field set.
func Default() Options {
	return Options{
		Log: LogOptions{Level: "info"},
		Server: ServerOptions{
			Command:         "tsgo",
			Args:            []string{"--lsp", "--stdio"},
			ShutdownTimeout: Duration(2 * time.Second),
		},
		Restart:  RestartOptions{PromptDelay: Duration(100 * time.Millisecond)},
		Settings: SettingsOptions{User: DefaultUserSettings(), Watch: true},
		Host:     HostOptions{Version: "1.104.0", Mode: "production"},
	}
}

// DefaultUserSettings returns the user settings file path.
func DefaultUserSettings() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".previewctl", "settings.json")
	}
	return filepath.Join(dir, "previewctl", "settings.json")
}

// Load reads options from path over the defaults. A missing file yields the
// defaults.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("reading options file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing options file %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("%s: %w", path, err)
	}
	return opts, nil
}

// Save writes options to path as TOML.
func Save(path string, opts Options) error {
	data, err := toml.Marshal(opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks option values.
func (o Options) Validate() error {
	var errs []error
	if !logging.ValidLevel(o.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q", o.Log.Level))
	}
	if o.Server.Command == "" {
		errs = append(errs, errors.New("server.command is empty"))
	}
	if o.Restart.PromptDelay < 0 {
		errs = append(errs, errors.New("restart.prompt_delay is negative"))
	}
	switch o.Host.Mode {
	case "production", "development", "test":
	default:
		errs = append(errs, fmt.Errorf("host.mode %q", o.Host.Mode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}

// WorkspaceSettingsPath returns the settings file inside a workspace or
// folder directory.
func WorkspaceSettingsPath(dir string) string {
	return filepath.Join(dir, ".vscode", "settings.json")
}

// SettingsFiles maps each writable scope to its settings file. Workspace
// entries are directories and resolve to their .vscode/settings.json.
func (o Options) SettingsFiles() map[layer.Scope]string {
	files := make(map[layer.Scope]string)
	if o.Settings.User != "" {
		files[layer.ScopeGlobal] = o.Settings.User
	}
	if o.Settings.Workspace != "" {
		files[layer.ScopeWorkspace] = WorkspaceSettingsPath(o.Settings.Workspace)
	}
	if o.Settings.WorkspaceFolder != "" {
		files[layer.ScopeWorkspaceFolder] = WorkspaceSettingsPath(o.Settings.WorkspaceFolder)
	}
	return files
}
