package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubReconciler struct {
	calls int
	err   error
}

func (s *stubReconciler) Reconcile(ctx context.Context) error {
	s.calls++
	return s.err
}

func TestReconciliationPollerReconcilesOnEveryTick(t *testing.T) {
	stub := &stubReconciler{}
	poller := NewReconciliationPoller(stub, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	_ = poller.Run(ctx)
	assert.GreaterOrEqual(t, stub.calls, 2)
}

func TestReconciliationPollerSurvivesReconcileError(t *testing.T) {
	stub := &stubReconciler{err: assertErr}
	poller := NewReconciliationPoller(stub, 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	err := poller.Run(ctx)
	assert.Error(t, err) // ctx deadline, not the reconcile error
	assert.GreaterOrEqual(t, stub.calls, 1)
}

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "reconcile failed" }
