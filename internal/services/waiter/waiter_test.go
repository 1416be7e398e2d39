package waiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/smoke/internal/models"
)

// Slack allowed for scheduler jitter on loaded CI machines
const slack = 150 * time.Millisecond

func newTestWaiter() *Waiter {
	return NewWaiter(arbor.NewLogger(), time.Second, 100*time.Millisecond, 100*time.Millisecond)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []error
}

func (o *recordingObserver) WaitCompleted(description string, attempts int, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, err)
}

func TestWait_ImmediateSuccess(t *testing.T) {
	w := newTestWaiter()
	calls := 0

	start := time.Now()
	err := w.Wait(context.Background(), w.Spec("ready"), func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls, "first evaluation must be immediate")
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWait_SuccessWithinOneInterval(t *testing.T) {
	w := newTestWaiter()
	becomesTrue := time.Now().Add(250 * time.Millisecond)

	start := time.Now()
	err := w.Wait(context.Background(), w.Spec("late"), func(ctx context.Context) (bool, error) {
		return time.Now().After(becomesTrue), nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 250*time.Millisecond+100*time.Millisecond+slack)
}

func TestWait_TimeoutBounds(t *testing.T) {
	w := newTestWaiter()
	spec := models.WaitSpec{Description: "never", Timeout: 350 * time.Millisecond, Interval: 100 * time.Millisecond}

	start := time.Now()
	err := w.Wait(context.Background(), spec, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	elapsed := time.Since(start)

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "never", timeoutErr.Description)
	assert.GreaterOrEqual(t, elapsed, 350*time.Millisecond)
	assert.LessOrEqual(t, elapsed, 350*time.Millisecond+100*time.Millisecond+slack)
	// 0, 100, 200, 300 and the final evaluation at the deadline
	assert.GreaterOrEqual(t, timeoutErr.Attempts, 4)
	assert.LessOrEqual(t, timeoutErr.Attempts, 5)
	assert.Contains(t, err.Error(), "never")
}

func TestWait_IntervalClampedToMinimum(t *testing.T) {
	w := newTestWaiter()
	spec := models.WaitSpec{Description: "clamped", Timeout: 250 * time.Millisecond, Interval: time.Millisecond}

	calls := 0
	err := w.Wait(context.Background(), spec, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	require.Error(t, err)
	assert.LessOrEqual(t, calls, 4)
}

func TestWait_ZeroSpecUsesDefaults(t *testing.T) {
	w := NewWaiter(arbor.NewLogger(), 200*time.Millisecond, 100*time.Millisecond, 0)

	start := time.Now()
	err := w.Wait(context.Background(), models.WaitSpec{}, func(ctx context.Context) (bool, error) {
		return false, nil
	})

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 200*time.Millisecond, timeoutErr.Timeout)
	assert.Equal(t, "condition", timeoutErr.Description)
	assert.Less(t, time.Since(start), 200*time.Millisecond+100*time.Millisecond+slack)
}

func TestWait_SwallowsTransientErrors(t *testing.T) {
	w := newTestWaiter()
	transient := errors.New("node detached")
	calls := 0

	err := w.Wait(context.Background(), w.Spec("flaky"), func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, transient
		}
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWait_TimeoutKeepsLastError(t *testing.T) {
	w := newTestWaiter()
	transient := errors.New("node detached")
	spec := models.WaitSpec{Description: "flaky", Timeout: 150 * time.Millisecond}

	err := w.Wait(context.Background(), spec, func(ctx context.Context) (bool, error) {
		return false, transient
	})

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, transient, timeoutErr.LastErr)
	assert.Contains(t, err.Error(), "node detached")
}

func TestWait_PermanentErrorAbortsImmediately(t *testing.T) {
	w := newTestWaiter()
	fatal := errors.New("bad selector")
	calls := 0

	err := w.Wait(context.Background(), w.Spec("fatal"), func(ctx context.Context) (bool, error) {
		calls++
		return false, Permanent(fatal)
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestWait_LifecycleErrorAbortsImmediately(t *testing.T) {
	w := newTestWaiter()
	calls := 0

	err := w.Wait(context.Background(), w.Spec("element"), func(ctx context.Context) (bool, error) {
		calls++
		return false, &models.LifecycleError{Op: "find", State: models.SessionCrashed}
	})

	assert.ErrorIs(t, err, models.ErrSessionCrashed)
	assert.Equal(t, 1, calls)
	assert.True(t, models.IsInfrastructure(err))
}

func TestWait_ContextCancellation(t *testing.T) {
	w := newTestWaiter()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(120*time.Millisecond, cancel)

	start := time.Now()
	err := w.Wait(ctx, models.WaitSpec{Description: "forever", Timeout: 10 * time.Second}, func(ctx context.Context) (bool, error) {
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 120*time.Millisecond+slack)

	var timeoutErr *models.TimeoutError
	assert.False(t, errors.As(err, &timeoutErr), "cancellation is not a timeout")
}

func TestWait_CallerDeadlineIsTimeout(t *testing.T) {
	w := newTestWaiter()
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	err := w.Wait(ctx, models.WaitSpec{Description: "slow", Timeout: 10 * time.Second}, func(ctx context.Context) (bool, error) {
		return false, errors.New("not rendered")
	})

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "slow", timeoutErr.Description)
	assert.EqualError(t, timeoutErr.LastErr, "not rendered")
}

func TestWait_CallerDeadlineDuringPollKeepsPollError(t *testing.T) {
	w := newTestWaiter()
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	calls := 0

	err := w.Wait(ctx, models.WaitSpec{Description: "endpoint", Timeout: 10 * time.Second}, func(ctx context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("status 404")
		}
		// Hangs until the caller deadline ends the attempt
		<-ctx.Done()
		return false, ctx.Err()
	})

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 2, calls)
	assert.EqualError(t, timeoutErr.LastErr, "status 404")
}

func TestWait_AlreadyCancelledContext(t *testing.T) {
	w := newTestWaiter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := w.Wait(ctx, w.Spec("never evaluated"), func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestUntil_ReturnsValue(t *testing.T) {
	w := newTestWaiter()
	calls := 0

	got, err := Until(context.Background(), w, w.Spec("count"), func(ctx context.Context) (int, bool, error) {
		calls++
		return calls * 10, calls == 2, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 20, got)
}

func TestUntil_QueryContextIsBounded(t *testing.T) {
	w := newTestWaiter()
	spec := models.WaitSpec{Description: "blocking", Timeout: 200 * time.Millisecond}

	start := time.Now()
	_, err := Until(context.Background(), w, spec, func(ctx context.Context) (string, bool, error) {
		<-ctx.Done()
		return "", false, ctx.Err()
	})

	var timeoutErr *models.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Less(t, time.Since(start), 200*time.Millisecond+2*DefaultMinInterval+slack)
}

func TestWait_NotifiesObserver(t *testing.T) {
	w := newTestWaiter()
	observer := &recordingObserver{}
	w.SetObserver(observer)

	_ = w.Wait(context.Background(), w.Spec("ok"), func(ctx context.Context) (bool, error) { return true, nil })
	_ = w.Wait(context.Background(), models.WaitSpec{Timeout: 100 * time.Millisecond}, func(ctx context.Context) (bool, error) { return false, nil })

	require.Len(t, observer.calls, 2)
	assert.NoError(t, observer.calls[0])
	assert.Error(t, observer.calls[1])
}
