package attendance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBlocksAtLimit(t *testing.T) {
	gate := NewGate(1, 1)

	release, err := gate.AcquireForm(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gate.AcquireForm(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()

	release2, err := gate.AcquireForm(context.Background())
	require.NoError(t, err)
	release2()
}

func TestGateReleaseIsIdempotent(t *testing.T) {
	gate := NewGate(1, 1)

	release, err := gate.AcquireStore(context.Background())
	require.NoError(t, err)
	release()
	release() // must not add a second permit

	release2, err := gate.AcquireStore(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gate.AcquireStore(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	release2()
}

func TestGatePoolsAreIndependent(t *testing.T) {
	gate := NewGate(1, 1)

	release, err := gate.AcquireForm(context.Background())
	require.NoError(t, err)
	defer release()

	// A saturated form pool must not block datastore acquisition
	releaseStore, err := gate.AcquireStore(context.Background())
	require.NoError(t, err)
	releaseStore()
}

func TestGateBoundsConcurrency(t *testing.T) {
	const limit = 3
	gate := NewGate(limit, 1)

	var inFlight, maxInFlight atomic.Int64
	var wg sync.WaitGroup
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := gate.AcquireForm(context.Background())
			if err != nil {
				return
			}
			defer release()

			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxInFlight.Load(), int64(limit))
}

func TestGateNonPositiveLimits(t *testing.T) {
	gate := NewGate(0, -5)

	release, err := gate.AcquireForm(context.Background())
	require.NoError(t, err)
	release()

	release, err = gate.AcquireStore(context.Background())
	require.NoError(t, err)
	release()
}
