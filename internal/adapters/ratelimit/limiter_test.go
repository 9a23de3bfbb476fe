package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBurstThenRefill(t *testing.T) {
	now := time.Unix(0, 0)
	k := New(2, 3)
	k.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, k.Allow("a"), "burst %d", i)
	}
	assert.False(t, k.Allow("a"))
	assert.True(t, k.Allow("b"), "keys are independent")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, k.Allow("a"))
	assert.False(t, k.Allow("a"))
}

func TestDisabled(t *testing.T) {
	k := New(0, 0)
	for i := 0; i < 100; i++ {
		assert.True(t, k.Allow("a"))
	}
}

func TestForgetAndSweep(t *testing.T) {
	now := time.Unix(0, 0)
	k := New(1, 1)
	k.now = func() time.Time { return now }

	k.Allow("a")
	k.Allow("b")
	k.Forget("a")
	assert.Equal(t, 1, k.Len())

	now = now.Add(time.Minute)
	k.Allow("c")
	assert.Equal(t, 1, k.Sweep(30*time.Second))
	assert.Equal(t, 1, k.Len())
}

func TestSweepEveryStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	k := New(1, 1)
	k.Allow("a")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.SweepEvery(ctx, time.Millisecond, 0)
		close(done)
	}()

	require.Eventually(t, func() bool { return k.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
