package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/previewctl/internal/app"
)

func (c *cli) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Host the controller with an interactive command prompt",
		Long: `run activates the controller and reads commands from standard input.
Settings file edits are picked up while running. A host restart, requested
by the enable command or the restart prompt, rebuilds the whole session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := c.options()
			if err != nil {
				return err
			}
			logger, release, err := c.logger(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer release()

			lines := app.ReadLines(cmd.InOrStdin())
			generation := 0
			build := func() (app.Options, error) {
				generation++
				if generation > 1 {
					if opts, err = c.options(); err != nil {
						return app.Options{}, err
					}
				}
				return app.Options{
					Config:  opts,
					Input:   lines,
					Out:     cmd.OutOrStdout(),
					Version: version,
					Logger:  logger,
				}, nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "previewctl %s, type help for commands\n", version)
			return app.Serve(cmd.Context(), build, nil, logger)
		},
	}
}
