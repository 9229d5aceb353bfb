package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Delay: time.Millisecond}
}

func TestDo(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		calls := 0
		v, err := Do(context.Background(), fastPolicy(3), "op", func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 1, calls)
	})

	t.Run("second attempt succeeds", func(t *testing.T) {
		calls := 0
		v, err := Do(context.Background(), fastPolicy(3), "op", func(context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("transient")
			}
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 2, calls)
	})

	t.Run("exhausted returns final error verbatim", func(t *testing.T) {
		calls := 0
		var last error
		_, err := Do(context.Background(), fastPolicy(3), "op", func(context.Context) (int, error) {
			calls++
			last = fmt.Errorf("failure %d", calls)
			return 0, last
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.Same(t, last, err)
		assert.Equal(t, "failure 3", err.Error())
	})

	t.Run("single attempt policy", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(1), "op", func(context.Context) (int, error) {
			calls++
			return 0, errors.New("nope")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_, _ = Do(context.Background(), fastPolicy(0), "op", func(context.Context) (int, error) {
			calls++
			return 0, errors.New("nope")
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("waits between attempts only", func(t *testing.T) {
		p := Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond}
		start := time.Now()
		_, err := Do(context.Background(), p, "op", func(context.Context) (int, error) {
			return 0, errors.New("nope")
		})
		elapsed := time.Since(start)
		require.Error(t, err)
		assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
		assert.Less(t, elapsed, 2*time.Second)
	})

	t.Run("cancelled during wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		p := Policy{MaxAttempts: 5, Delay: time.Hour}
		_, err := Do(ctx, p, "op", func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, errors.New("nope")
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
