package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/previewctl/internal/config/layer"
	"github.com/dshills/previewctl/internal/config/registry"
	"github.com/dshills/previewctl/internal/config/scope"
)

// newFlagCmd builds enable or disable: a one-shot write of the capability
// flag at the scope that already holds it.
func (c *cli) newFlagCmd(name string, value bool) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Set %s to %v at the scope that already sets it", registry.UseTsgo, value),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := c.options()
			if err != nil {
				return err
			}
			s, err := openStore(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			flag := registry.UseTsgo
			target := scope.ResolveWriteScope(s.Inspect(flag))
			if err := s.Update(cmd.Context(), flag, value, target); err != nil {
				return fmt.Errorf("failed to update %s: %w", flag, err)
			}

			written := target
			if written == layer.ScopeUnset {
				written = layer.ScopeGlobal
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s = %v (%s, %s)\n", flag, value, written, s.File(written).Path())
			if s.Registry().Get(flag).NeedsRestart(opts.Host.Version) {
				fmt.Fprintf(out, "a running host %s must restart its extensions to apply this\n", opts.Host.Version)
			}
			return nil
		},
	}
}
