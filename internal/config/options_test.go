package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/previewctl/internal/config/layer"
)

func TestDefault(t *testing.T) {
	opts := Default()
	if err := opts.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if time.Duration(opts.Restart.PromptDelay) != 100*time.Millisecond {
		t.Errorf("PromptDelay = %v, want 100ms", time.Duration(opts.Restart.PromptDelay))
	}
	if opts.Server.Command == "" {
		t.Error("Server.Command is empty")
	}
}

func TestLoad_Missing(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if opts.Log.Level != Default().Log.Level {
		t.Errorf("Log.Level = %q, want default", opts.Log.Level)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
[log]
level = "debug"

[server]
command = "/opt/tsgo/bin/tsgo"

[restart]
prompt_delay = "250ms"

[host]
version = "1.106.0"
mode = "development"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if opts.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", opts.Log.Level)
	}
	if opts.Server.Command != "/opt/tsgo/bin/tsgo" {
		t.Errorf("Server.Command = %q", opts.Server.Command)
	}
	if len(opts.Server.Args) != 2 {
		t.Errorf("Server.Args = %v, want defaults kept", opts.Server.Args)
	}
	if time.Duration(opts.Restart.PromptDelay) != 250*time.Millisecond {
		t.Errorf("PromptDelay = %v", time.Duration(opts.Restart.PromptDelay))
	}
	if opts.Host.Mode != "development" || opts.Host.Version != "1.106.0" {
		t.Errorf("Host = %+v", opts.Host)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"syntax", `[log`, false},
		{"bad duration", "[restart]\nprompt_delay = \"soon\"", false},
		{"bad level", "[log]\nlevel = \"loud\"", true},
		{"bad mode", "[host]\nmode = \"staging\"", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil")
			}
			if tt.invalid && !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Load() error = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	opts := Default()
	opts.Metrics.Addr = "127.0.0.1:9464"
	opts.Restart.PromptDelay = Duration(time.Second)

	if err := Save(path, opts); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Metrics.Addr != opts.Metrics.Addr {
		t.Errorf("Metrics.Addr = %q", got.Metrics.Addr)
	}
	if got.Restart.PromptDelay != opts.Restart.PromptDelay {
		t.Errorf("PromptDelay = %v", got.Restart.PromptDelay)
	}
}

func TestOptions_SettingsFiles(t *testing.T) {
	opts := Default()
	opts.Settings.User = "/home/u/settings.json"
	opts.Settings.Workspace = "/src/app"
	opts.Settings.WorkspaceFolder = ""

	files := opts.SettingsFiles()
	if files[layer.ScopeGlobal] != "/home/u/settings.json" {
		t.Errorf("global = %q", files[layer.ScopeGlobal])
	}
	if files[layer.ScopeWorkspace] != filepath.Join("/src/app", ".vscode", "settings.json") {
		t.Errorf("workspace = %q", files[layer.ScopeWorkspace])
	}
	if _, ok := files[layer.ScopeWorkspaceFolder]; ok {
		t.Error("workspace folder file present without a folder")
	}
}
