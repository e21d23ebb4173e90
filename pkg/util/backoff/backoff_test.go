package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInstance_C(t *testing.T) {
	i := Instance{
		MaxRetries:        5,
		BackoffPolicy:     ExponentialBackoff,
		BaseRetryDuration: 10 * time.Millisecond,
	}
	start := time.Now()
	var expectedAttempt int
	for attempt := range i.C(context.TODO()) {
		assert.Equal(t, expectedAttempt, attempt)
		expectedAttempt++
	}
	assert.Equal(t, i.MaxRetries, expectedAttempt)
	// 10 + 20 + 40 + 80 + 160
	assert.True(t, time.Since(start) >= 300*time.Millisecond)
}

func TestInstance_Backoff(t *testing.T) {
	i := New(time.Millisecond, 4*time.Millisecond, 3)

	assert.True(t, i.Backoff(context.Background()))
	assert.True(t, i.Backoff(context.Background()))
	assert.True(t, i.Backoff(context.Background()))
	assert.False(t, i.Backoff(context.Background()))
	assert.Equal(t, 3, i.Attempt)

	i.Reset()
	assert.True(t, i.Backoff(context.Background()))
}

func TestInstance_BackoffCancelled(t *testing.T) {
	i := New(time.Hour, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, i.Backoff(ctx))
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, ExponentialBackoff(0, 10*time.Millisecond))
	assert.Equal(t, 80*time.Millisecond, ExponentialBackoff(3, 10*time.Millisecond))
	assert.Equal(t, time.Duration(1<<30), ExponentialBackoff(100, time.Nanosecond))
}
