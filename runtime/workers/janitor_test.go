package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingReaper struct {
	calls atomic.Int64
}

func (r *countingReaper) ReapEmptyRooms(time.Duration) int {
	r.calls.Add(1)
	return 1
}

func TestJanitorWorker_ReapsOnEveryTick(t *testing.T) {
	req := require.New(t)
	reaper := &countingReaper{}
	janitor := NewJanitorWorker(reaper, 10*time.Millisecond, time.Minute, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- janitor.Run(ctx)
	}()

	// Let a few ticks elapse
	require.Eventually(t, func() bool {
		return reaper.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.Fail("janitor should stop on context cancel")
	}
}
