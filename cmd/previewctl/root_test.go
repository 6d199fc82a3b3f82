package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// testEnv points every settings scope into a temp dir.
type testEnv struct {
	dir    string
	config string
	user   string
	ws     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "previewctl.toml"),
		user:   filepath.Join(dir, "user", "settings.json"),
		ws:     filepath.Join(dir, "ws"),
	}
}

func (e *testEnv) args(args ...string) []string {
	return append(args, "--config", e.config, "--user-settings", e.user, "--workspace", e.ws)
}

func (e *testEnv) write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFlag(t *testing.T, path string) gjson.Result {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return gjson.GetBytes(data, `typescript\.experimental\.useTsgo`)
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	if root.Use != "previewctl" {
		t.Errorf("Use = %q", root.Use)
	}
	want := []string{"run", "inspect", "enable", "disable", "init", "version"}
	have := make(map[string]bool)
	for _, cmd := range root.Commands() {
		have[cmd.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(newRootCmd(), "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "previewctl "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestEnable_WritesResolvedScope(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		workspace string
		wantFile  func(e *testEnv) string
	}{
		{
			name:     "unset writes user settings",
			wantFile: func(e *testEnv) string { return e.user },
		},
		{
			name:      "workspace value is updated in place",
			user:      `{"typescript.experimental.useTsgo": false}`,
			workspace: `{"editor.tabSize": 2, "typescript.experimental.useTsgo": false}`,
			wantFile:  func(e *testEnv) string { return filepath.Join(e.ws, ".vscode", "settings.json") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			if tt.user != "" {
				e.write(t, e.user, tt.user)
			}
			if tt.workspace != "" {
				e.write(t, filepath.Join(e.ws, ".vscode", "settings.json"), tt.workspace)
			}

			out, err := executeCommand(newRootCmd(), e.args("enable", "--host-version", "1.104.0")...)
			if err != nil {
				t.Fatalf("enable: %v\n%s", err, out)
			}
			if f := readFlag(t, tt.wantFile(e)); !f.Bool() {
				t.Errorf("flag in %s = %v, want true", tt.wantFile(e), f)
			}
			if !strings.Contains(out, "must restart") {
				t.Errorf("output does not mention the restart:\n%s", out)
			}
		})
	}
}

func TestEnable_PreservesOtherKeys(t *testing.T) {
	e := newTestEnv(t)
	path := filepath.Join(e.ws, ".vscode", "settings.json")
	e.write(t, path, `{"editor.tabSize": 2, "typescript.experimental.useTsgo": false}`)

	if out, err := executeCommand(newRootCmd(), e.args("enable")...); err != nil {
		t.Fatalf("enable: %v\n%s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(data, `editor\.tabSize`).Int(); got != 2 {
		t.Errorf("editor.tabSize = %d, want 2", got)
	}
}

func TestDisable_NoRestartOnNewHost(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, e.user, `{"typescript.experimental.useTsgo": true}`)

	out, err := executeCommand(newRootCmd(), e.args("disable", "--host-version", "1.105.0")...)
	if err != nil {
		t.Fatalf("disable: %v\n%s", err, out)
	}
	if f := readFlag(t, e.user); f.Bool() {
		t.Error("flag still true")
	}
	if strings.Contains(out, "must restart") {
		t.Errorf("restart mentioned for a host that applies the flag live:\n%s", out)
	}
}

func TestInspect(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, e.user, `{"typescript.experimental.useTsgo": true}`)

	out, err := executeCommand(newRootCmd(), e.args("inspect")...)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{
		"typescript.experimental.useTsgo",
		"effective:        true",
		"global:           true",
		"workspace:        (unset)",
		"write scope:      global",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspect_JSON(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, filepath.Join(e.ws, ".vscode", "settings.json"), `{"typescript.experimental.useTsgo": false}`)

	out, err := executeCommand(newRootCmd(), e.args("inspect", "--json", "--host-version", "1.105.0")...)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !gjson.Valid(out) {
		t.Fatalf("output is not JSON:\n%s", out)
	}
	checks := map[string]string{
		"writeScope":       "workspace",
		"scopes.workspace": "false",
		"scopes.global":    "",
		"needsRestart":     "false",
	}
	for path, want := range checks {
		if got := gjson.Get(out, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

func TestInspect_UnknownSetting(t *testing.T) {
	e := newTestEnv(t)
	if _, err := executeCommand(newRootCmd(), e.args("inspect", "no.such.setting")...); err == nil {
		t.Error("inspect of an unknown setting succeeded")
	}
}

func TestOptions_EnvironmentOverride(t *testing.T) {
	e := newTestEnv(t)
	t.Setenv("PREVIEWCTL_HOST_VERSION", "1.200.0")
	t.Setenv("PREVIEWCTL_DEVELOPMENT", "true")

	out, err := executeCommand(newRootCmd(), e.args("inspect", "--json")...)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.Get(out, "hostVersion").String(); got != "1.200.0" {
		t.Errorf("hostVersion = %q, want 1.200.0 from the environment", got)
	}
}

func TestOptions_FileAndFlags(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, e.config, "[host]\nversion = \"1.105.0\"\nmode = \"test\"\n")

	out, err := executeCommand(newRootCmd(), e.args("inspect", "--json")...)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.Get(out, "hostVersion").String(); got != "1.105.0" {
		t.Errorf("hostVersion = %q, want the file value", got)
	}

	out, err = executeCommand(newRootCmd(), e.args("inspect", "--json", "--host-version", "1.106.0")...)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.Get(out, "hostVersion").String(); got != "1.106.0" {
		t.Errorf("hostVersion = %q, want the flag value", got)
	}
}

func TestInit(t *testing.T) {
	e := newTestEnv(t)

	out, err := executeCommand(newRootCmd(), "init", e.config)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "wrote") {
		t.Errorf("output = %q", out)
	}
	if _, err := executeCommand(newRootCmd(), "init", e.config); err == nil {
		t.Error("init overwrote an existing file without --force")
	}
	if _, err := executeCommand(newRootCmd(), "init", "--force", e.config); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestRun_QuitsOnEOF(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, e.config, "[settings]\nwatch = false\n")

	out, err := executeCommand(newRootCmd(), e.args("run")...)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "type help for commands") {
		t.Errorf("output = %q", out)
	}
}
