package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/previewctl/internal/config"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/store"
	"github.com/dshills/previewctl/internal/logging"
)

// envPrefix prefixes the environment variables that override flags, e.g.
// PREVIEWCTL_HOST_VERSION for --host-version.
const envPrefix = "PREVIEWCTL"

// cli carries the state shared by subcommands.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "previewctl",
		Short: "TypeScript native preview activation controller",
		Long: `previewctl hosts the activation and configuration controller of the
TypeScript native preview. It reads VS Code style settings files, starts
the native language server when typescript.experimental.useTsgo is on, and
asks for an extension host restart when the running host cannot apply a
change in place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", config.FileName, "options file")
	flags.String("workspace", "", "workspace directory (settings in .vscode/settings.json)")
	flags.String("folder", "", "workspace folder directory (settings in .vscode/settings.json)")
	flags.String("user-settings", "", "user settings file")
	flags.Bool("development", false, "run the host in development mode")
	flags.String("host-version", "", "emulated host version")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = c.v.BindPFlags(flags)

	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(
		c.newRunCmd(),
		c.newInspectCmd(),
		c.newFlagCmd("enable", true),
		c.newFlagCmd("disable", false),
		c.newInitCmd(),
		newVersionCmd(),
	)
	return root
}

// options loads the options file and applies flag and environment
// overrides on top.
func (c *cli) options() (config.Options, error) {
	opts, err := config.Load(c.v.GetString("config"))
	if err != nil {
		return opts, err
	}

	if s := c.v.GetString("workspace"); s != "" {
		opts.Settings.Workspace = s
	}
	if s := c.v.GetString("folder"); s != "" {
		opts.Settings.WorkspaceFolder = s
	}
	if s := c.v.GetString("user-settings"); s != "" {
		opts.Settings.User = s
	}
	if c.v.GetBool("development") {
		opts.Host.Mode = "development"
	}
	if s := c.v.GetString("host-version"); s != "" {
		opts.Host.Version = s
	}
	if s := c.v.GetString("log-level"); s != "" {
		opts.Log.Level = s
	}
	if s := c.v.GetString("metrics-addr"); s != "" {
		opts.Metrics.Addr = s
	}
	return opts, opts.Validate()
}

// logger builds the process logger. The returned function releases the
// log file, if any.
func (c *cli) logger(opts config.Options, stderr io.Writer) (*logging.Logger, func(), error) {
	out := stderr
	release := func() {}
	if opts.Log.File != "" {
		f, err := os.OpenFile(opts.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		release = func() { f.Close() }
	}
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(opts.Log.Level)
	cfg.Output = out
	return logging.New(cfg), release, nil
}

// openStore opens the settings files named by opts without watching them.
func openStore(opts config.Options) (*store.Store, error) {
	return store.New(registry.NewWithDefaults(), store.Paths(opts.SettingsFiles()))
}
