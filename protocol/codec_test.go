package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	data, err := Marshal(EventLeaveSession, LeaveSessionPayload{SessionID: "abc"})
	require.NoError(t, err)

	event, raw, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, EventLeaveSession, event)

	p, err := UnmarshalPayload[LeaveSessionPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "abc", p.SessionID)
}

func TestMarshalWithoutPayload(t *testing.T) {
	data, err := Marshal(EventEnterSession, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"enterSession"}`, string(data))
}

func TestUnmarshalRejectsMissingEvent(t *testing.T) {
	_, _, err := Unmarshal([]byte(`{"payload":{}}`))
	assert.Error(t, err)
	_, _, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
