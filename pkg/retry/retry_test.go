package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int

	p := Policy{
		MaxAttempts: 3,
		OnRetry:     func(attempt int, err error) { retried = append(retried, attempt) },
	}

	got, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Attempts(3), func(ctx context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDoTreatsZeroAttemptsAsOne(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0

	p := Policy{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}
	err := Run(context.Background(), p, func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancelledContextDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := Policy{MaxAttempts: 5, Delay: time.Hour}
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, p, func(ctx context.Context) error {
			calls++
			return errFlaky
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestDoRetriesDeadlineOfSingleAttempt(t *testing.T) {
	calls := 0

	got, err := Do(context.Background(), Attempts(3), func(ctx context.Context) (string, error) {
		calls++
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		if calls == 1 {
			<-callCtx.Done()
			return "", callCtx.Err()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}

func TestDoStopsWhenCallerDeadlinePasses(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	calls := 0

	_, err := Do(ctx, Attempts(5), func(ctx context.Context) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}
