package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kagerou7/dedupq/envelope"
)

func TestPolicy_Normalize_RaisesAttemptsLimitAboveExceptionsLimit(t *testing.T) {
	p := Policy{Timeout: time.Minute, Delay: time.Second, AttemptsLimit: 1, ExceptionsLimit: 3}
	p.Normalize()
	assert.Equal(t, 4, p.AttemptsLimit)
	assert.Equal(t, 3, p.ExceptionsLimit)
}

func TestPolicy_Normalize_LeavesConsistentPolicyUntouched(t *testing.T) {
	p := Policy{Timeout: time.Minute, Delay: time.Second, AttemptsLimit: 5, ExceptionsLimit: 3}
	p.Normalize()
	assert.Equal(t, 5, p.AttemptsLimit)
	assert.Equal(t, 3, p.ExceptionsLimit)
}

func TestPolicy_Normalize_FillsZeroValues(t *testing.T) {
	var p Policy
	p.Normalize()
	assert.Equal(t, DefaultTimeout, p.Timeout)
	assert.Equal(t, DefaultDelay, p.Delay)
	assert.Equal(t, DefaultAttemptsLimit, p.AttemptsLimit)
	assert.Equal(t, DefaultExceptionsLimit, p.ExceptionsLimit)
}

func TestState_Simple(t *testing.T) {
	s := &State{Policy: Policy{AttemptsLimit: 1, ExceptionsLimit: 0}}
	assert.True(t, s.Simple())

	s.Envelope.Redundant = true
	assert.False(t, s.Simple())

	s.Envelope.Redundant = false
	s.Policy.AttemptsLimit = 2
	assert.False(t, s.Simple())
}

func TestState_Ancient(t *testing.T) {
	now := time.Now()
	s := &State{Envelope: envelope.Envelope{ExpiresAt: now.Add(-time.Minute)}}
	assert.True(t, s.Ancient(now))

	s.Envelope.ExpiresAt = now.Add(time.Minute)
	assert.False(t, s.Ancient(now))

	s.Envelope.ExpiresAt = time.Time{}
	assert.False(t, s.Ancient(now))
}
