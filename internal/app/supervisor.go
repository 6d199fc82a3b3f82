package app

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"

	"github.com/dshills/previewctl/internal/logging"
	"github.com/dshills/previewctl/internal/metrics"
)

// Builder produces the options of each application generation, so a host
// restart picks up edited options files.
type Builder func() (Options, error)

// Serve runs applications until one ends without requesting a restart.
// A restart request tears the running application down and builds the
// next one from scratch. The metrics endpoint, when configured, outlives
// the generations.
func Serve(ctx context.Context, build Builder, m *metrics.Metrics, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NullLogger
	}
	logger = logger.WithComponent("supervisor")
	if m == nil {
		m = metrics.New(nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg conc.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	serving := false
	for generation := 1; ; generation++ {
		opts, err := build()
		if err != nil {
			return err
		}
		opts.Metrics = m

		if addr := opts.Config.Metrics.Addr; addr != "" && !serving {
			serving = true
			wg.Go(func() {
				if err := m.Serve(ctx, addr); err != nil {
					logger.Error("metrics endpoint %s: %v", addr, err)
				}
			})
		}

		a, err := New(opts)
		if err != nil {
			return err
		}
		logger.Info("extension host generation %d started", generation)

		err = a.Run(ctx)
		if !errors.Is(err, ErrRestartRequested) {
			return err
		}
		logger.Info("restarting extension host")
	}
}
