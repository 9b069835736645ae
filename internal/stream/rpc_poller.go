package stream

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reconciler is the subset of the state engine the poller drives.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// ReconciliationPoller periodically re-runs the engine's full bootstrap
// sequence against RPC, correcting any drift the streaming feed missed
// (spec §1). It never stops the process on a failed reconciliation pass;
// it logs and waits for the next tick.
type ReconciliationPoller struct {
	engine   Reconciler
	interval time.Duration
	log      *logrus.Logger
}

// NewReconciliationPoller constructs a poller that reconciles engine every
// interval.
func NewReconciliationPoller(engine Reconciler, interval time.Duration, log *logrus.Logger) *ReconciliationPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &ReconciliationPoller{engine: engine, interval: interval, log: log}
}

// Run blocks, reconciling on every tick until ctx is cancelled.
func (p *ReconciliationPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.engine.Reconcile(ctx); err != nil {
				p.log.WithError(err).Warn("reconciliation pass failed, will retry next tick")
			}
		}
	}
}
