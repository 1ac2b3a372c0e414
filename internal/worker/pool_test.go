package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDoReturnsResult(t *testing.T) {
	p := New(2)
	assert.Equal(t, 2, p.Limit())

	require.NoError(t, p.Do(context.Background(), func() error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, p.Do(context.Background(), func() error { return boom }), boom)
}

func TestDefaultLimit(t *testing.T) {
	assert.Positive(t, New(0).Limit())
}

func TestDoRespectsLimit(t *testing.T) {
	p := New(3)
	var running, peak atomic.Int32

	errs := p.Each(context.Background(), 20, func(context.Context, int) error {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestEachCollectsPerItemErrors(t *testing.T) {
	p := New(4)
	errs := p.Each(context.Background(), 6, func(_ context.Context, i int) error {
		if i%2 == 1 {
			return errors.New("odd")
		}
		return nil
	})
	require.Len(t, errs, 6)
	for i, err := range errs {
		if i%2 == 1 {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestDoAbandonsOnCancel(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := p.Do(ctx, func() error {
		defer close(finished)
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	// the slot is still held by the abandoned job
	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, p.Do(short, func() error { return nil }), context.DeadlineExceeded)

	close(release)
	<-finished
	require.Eventually(t, func() bool {
		return p.Do(context.Background(), func() error { return nil }) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestEachCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	errs := New(2).Each(ctx, 3, func(context.Context, int) error {
		calls.Add(1)
		return nil
	})
	assert.Zero(t, calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
