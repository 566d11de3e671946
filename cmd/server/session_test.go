package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/homebuild/internal/wizard"
)

func TestSessionCodecRoundTrip(t *testing.T) {
	codec, err := newSessionCodec("secret", true)
	require.NoError(t, err)

	st := wizard.State{
		Step:          wizard.StepEnterDetails,
		Project:       "deck",
		Details:       map[string]string{"sqft": "250"},
		SubmissionKey: "key-1",
	}
	value, err := codec.encode(st)
	require.NoError(t, err)

	got, ok := codec.decode(value)
	require.True(t, ok)
	assert.Equal(t, st, got)
}

func TestSessionCodecRejectsForgeries(t *testing.T) {
	codec, err := newSessionCodec("secret", true)
	require.NoError(t, err)
	other, err := newSessionCodec("another-secret", true)
	require.NoError(t, err)

	value, err := codec.encode(wizard.State{Step: wizard.StepSelectProject})
	require.NoError(t, err)

	_, ok := other.decode(value)
	assert.False(t, ok)

	for _, bad := range []string{"", "no-dot", "payload.zz", "." + value} {
		_, ok := codec.decode(bad)
		assert.False(t, ok, bad)
	}
}

func TestSessionCodecEphemeralKey(t *testing.T) {
	a, err := newSessionCodec("", false)
	require.NoError(t, err)
	b, err := newSessionCodec("", false)
	require.NoError(t, err)

	value, err := a.encode(wizard.State{Step: wizard.StepSelectProject})
	require.NoError(t, err)

	_, ok := a.decode(value)
	assert.True(t, ok)
	_, ok = b.decode(value)
	assert.False(t, ok)
}
