package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 300*time.Millisecond, p.Delay(5), "capped at MaxDelay")
}

func TestRetryPolicy_JitterStaysInBand(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2, Jitter: 0.1}
	for range 50 {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_ReusesClientPerProxy(t *testing.T) {
	pool := NewPool(time.Second)

	direct, err := pool.Client("")
	require.NoError(t, err)
	again, err := pool.Client("")
	require.NoError(t, err)
	assert.Same(t, direct, again)

	viaHTTP, err := pool.Client("http://127.0.0.1:8080")
	require.NoError(t, err)
	assert.NotSame(t, direct, viaHTTP)

	_, err = pool.Client("socks5://127.0.0.1:1080")
	require.NoError(t, err)

	_, err = pool.Client("ftp://127.0.0.1:21")
	assert.Error(t, err)
}
