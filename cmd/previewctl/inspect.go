package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/previewctl/internal/config/layer"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/scope"
)

// report is what inspect prints for one setting.
type report struct {
	Setting      string
	Effective    any
	Inspection   layer.Inspection
	WriteScope   layer.Scope
	NeedsRestart bool
	HostVersion  string
}

func (c *cli) newInspectCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect [setting]",
		Short: "Show a setting at every scope and where a write would go",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setting := registry.UseTsgo
			if len(args) == 1 {
				setting = args[0]
			}

			opts, err := c.options()
			if err != nil {
				return err
			}
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			meta := s.Registry().Get(setting)
			if meta == nil {
				return fmt.Errorf("%w: %s", registry.ErrUnknownSetting, setting)
			}

			insp := s.Inspect(setting)
			effective, _ := s.Get(setting)
			r := report{
				Setting:      setting,
				Effective:    effective,
				Inspection:   insp,
				WriteScope:   scope.ResolveWriteScope(insp),
				NeedsRestart: meta.NeedsRestart(opts.Host.Version),
				HostVersion:  opts.Host.Version,
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), r)
			}
			writeText(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func writeText(w io.Writer, r report) {
	restart := "no"
	if r.NeedsRestart {
		restart = "yes"
	}
	fmt.Fprintln(w, r.Setting)
	fmt.Fprintf(w, "  effective:        %s\n", show(r.Effective))
	fmt.Fprintf(w, "  default:          %s\n", show(r.Inspection.DefaultValue))
	fmt.Fprintf(w, "  global:           %s\n", show(r.Inspection.GlobalValue))
	fmt.Fprintf(w, "  workspace:        %s\n", show(r.Inspection.WorkspaceValue))
	fmt.Fprintf(w, "  workspace folder: %s\n", show(r.Inspection.WorkspaceFolderValue))
	fmt.Fprintf(w, "  write scope:      %s\n", r.WriteScope)
	fmt.Fprintf(w, "  restart needed:   %s (host %s)\n", restart, r.HostVersion)
}

func writeJSON(w io.Writer, r report) error {
	doc := []byte(`{}`)
	fields := []struct {
		path  string
		value any
	}{
		{"setting", r.Setting},
		{"effective", r.Effective},
		{"scopes.default", r.Inspection.DefaultValue},
		{"scopes.global", r.Inspection.GlobalValue},
		{"scopes.workspace", r.Inspection.WorkspaceValue},
		{"scopes.workspaceFolder", r.Inspection.WorkspaceFolderValue},
		{"writeScope", r.WriteScope.String()},
		{"needsRestart", r.NeedsRestart},
		{"hostVersion", r.HostVersion},
	}
	for _, f := range fields {
		var err error
		if doc, err = sjson.SetBytes(doc, f.path, f.value); err != nil {
			return fmt.Errorf("encode %s: %w", f.path, err)
		}
	}
	_, err := w.Write(pretty.Pretty(doc))
	return err
}

func show(v any) string {
	if v == nil {
		return "(unset)"
	}
	return fmt.Sprint(v)
}
