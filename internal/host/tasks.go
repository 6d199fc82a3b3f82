package host

import (
	"context"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/dshills/previewctl/internal/logging"
)

// Tasks runs detached work. A task has no result and no cancellation: its
// context is never cancelled by the caller, and failures are only logged.
// Panics are recovered and logged. Wait blocks until every task returns.
type Tasks struct {
	wg     conc.WaitGroup
	logger *logging.Logger
}

// NewTasks creates a task runner.
func NewTasks(logger *logging.Logger) *Tasks {
	if logger == nil {
		logger = logging.NullLogger
	}
	return &Tasks{logger: logger.WithComponent("tasks")}
}

// Go starts fn in the background.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Go(func() {
		var err error
		var catcher panics.Catcher
		catcher.Try(func() { err = fn(context.Background()) })

		if r := catcher.Recovered(); r != nil {
			t.logger.Error("task %s panicked: %v", name, r.AsError())
			return
		}
		if err != nil {
			t.logger.Warn("task %s failed: %v", name, err)
			return
		}
		t.logger.Debug("task %s finished", name)
	})
}

// Wait blocks until all started tasks have returned.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
