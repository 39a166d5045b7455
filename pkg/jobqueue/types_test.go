package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicStatusCoversEveryState(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StatePending, StatusSubmitted},
		{StateStarted, StatusProcessing},
		{StateProcessing, StatusProcessing},
		{StateRetry, StatusProcessing},
		{StateSuccess, StatusDone},
		{StateFailure, StatusError},
		{StateRevoked, StatusError},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, PublicStatus(tt.state))
		})
	}
}

func TestPublicStatusUnrecognizedStateIsUnknown(t *testing.T) {
	assert.Equal(t, StatusUnknown, PublicStatus(State("SPANISH_INQUISITION")))
	assert.Equal(t, StatusUnknown, PublicStatus(State("")))
}

func TestTerminal(t *testing.T) {
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFailure.Terminal())
	assert.True(t, StateRevoked.Terminal())
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateStarted.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.False(t, StateRetry.Terminal())
}

func TestAlgorithmSupported(t *testing.T) {
	assert.True(t, AlgorithmSupported(AlgorithmInfomap))
	assert.False(t, AlgorithmSupported(AlgorithmLouvain))
	assert.False(t, AlgorithmSupported("walktrap"))
	assert.False(t, AlgorithmSupported(""))
}
