package agent

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// run drives the three long-lived loops. The exporter loop owns queue
// draining and the OTLP shutdown, so once the group returns the pipeline is
// fully flushed.
func (a *Agent) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.orchestrator.Run(gctx)
	})
	g.Go(func() error {
		return a.exporter.Run(gctx)
	})
	g.Go(func() error {
		return a.runProbeListener(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
