package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	t.Run("first attempt has no delay", func(t *testing.T) {
		assert.Zero(t, RetryDelay(0))
	})

	t.Run("delay doubles per failure", func(t *testing.T) {
		assert.Equal(t, 5*time.Second, RetryDelay(1))
		assert.Equal(t, 10*time.Second, RetryDelay(2))
		assert.Equal(t, 20*time.Second, RetryDelay(3))
		assert.Equal(t, 40*time.Second, RetryDelay(4))
	})

	t.Run("delay never decreases", func(t *testing.T) {
		prev := time.Duration(0)
		for i := 0; i < 20; i++ {
			d := RetryDelay(i)
			assert.GreaterOrEqual(t, d, prev)
			prev = d
		}
	})

	t.Run("delay is capped", func(t *testing.T) {
		assert.Equal(t, MaxRetryDelay, RetryDelay(7))
		assert.Equal(t, MaxRetryDelay, RetryDelay(50))
	})
}

func TestNextAttemptAt(t *testing.T) {
	last := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, last.Add(5*time.Second), NextAttemptAt(last, 1))
	assert.Equal(t, last.Add(20*time.Second), NextAttemptAt(last, 3))
	assert.Equal(t, last, NextAttemptAt(last, 0))
}
