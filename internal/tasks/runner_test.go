package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunner_RunsAndWaits(t *testing.T) {
	r := NewRunner(2, time.Second, nil)
	defer r.Close()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		r.Go("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	r.Wait()

	assert.Equal(t, int32(10), ran.Load())
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	r := NewRunner(2, time.Second, nil)
	defer r.Close()

	var active, peak atomic.Int32
	for i := 0; i < 8; i++ {
		r.Go("bounded", func(ctx context.Context) error {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return nil
		})
	}
	r.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunner_ContextIsDetachedAndBounded(t *testing.T) {
	r := NewRunner(1, 20*time.Millisecond, nil)
	defer r.Close()

	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	r.Go("timeout", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return ctx.Err()
	})
	r.Wait()

	assert.Error(t, reqCtx.Err())
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestRunner_FailuresAndPanicsAreContained(t *testing.T) {
	r := NewRunner(1, time.Second, nil)
	defer r.Close()

	var after atomic.Bool
	r.Go("fails", func(ctx context.Context) error { return errors.New("boom") })
	r.Go("panics", func(ctx context.Context) error { panic("bad") })
	r.Go("after", func(ctx context.Context) error {
		after.Store(true)
		return nil
	})
	r.Wait()

	assert.True(t, after.Load())
}

func TestRunner_DropsAfterClose(t *testing.T) {
	r := NewRunner(1, time.Second, nil)
	r.Close()

	var ran atomic.Bool
	r.Go("late", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	r.Wait()

	assert.False(t, ran.Load())
}
