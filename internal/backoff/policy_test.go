package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyDelay(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxAttempts: 5, MaxDelay: time.Second}

	tests := []struct {
		k    int
		want time.Duration
	}{
		{k: 0, want: 100 * time.Millisecond},
		{k: 1, want: 100 * time.Millisecond},
		{k: 2, want: 200 * time.Millisecond},
		{k: 3, want: 400 * time.Millisecond},
		{k: 4, want: 800 * time.Millisecond},
		{k: 5, want: time.Second},
		{k: 60, want: time.Second},
		{k: 5000, want: time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.k), "delay for redelivery %d", tt.k)
	}
}

func TestPolicyDelayDefaultCap(t *testing.T) {
	p := Policy{InitialDelay: 10 * time.Second, Multiplier: 3, MaxAttempts: 3}

	assert.Equal(t, 10*time.Second, p.Delay(1))
	assert.Equal(t, DefaultMaxDelay, p.Delay(2))
}

func TestPolicyFractionalMultiplier(t *testing.T) {
	p := Policy{InitialDelay: time.Second, Multiplier: 1.5, MaxAttempts: 3}

	assert.Equal(t, 1500*time.Millisecond, p.Delay(2))
	assert.Equal(t, 2250*time.Millisecond, p.Delay(3))
}

func TestPolicyExhausted(t *testing.T) {
	p := Policy{InitialDelay: time.Millisecond, Multiplier: 2, MaxAttempts: 3}

	assert.False(t, p.Exhausted(1))
	assert.False(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))

	noRetry := Policy{Multiplier: 1}
	assert.True(t, noRetry.Exhausted(1))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, Policy{InitialDelay: time.Second, Multiplier: 2, MaxAttempts: 3}.Validate())

	err := Policy{InitialDelay: -time.Second, Multiplier: 0.5, MaxAttempts: -1, MaxDelay: -1}.Validate()
	assert.ErrorContains(t, err, "initial delay")
	assert.ErrorContains(t, err, "multiplier")
	assert.ErrorContains(t, err, "max attempts")
	assert.ErrorContains(t, err, "max delay")
}
