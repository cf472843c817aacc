package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterDeliversInOrder(t *testing.T) {
	e := NewEmitter("test")
	var got []string
	e.On("shared.critical_error", func(p *EventPacket) { got = append(got, "a:"+p.Event.(*CriticalErrorEvent).Error) })
	e.On("shared.critical_error", func(p *EventPacket) {
		assert.Equal(t, "test", p.Relayer)
		assert.NotEmpty(t, p.Uid)
		got = append(got, "b")
	})

	require.True(t, e.Emit(&CriticalErrorEvent{Error: "boom"}))
	assert.Equal(t, []string{"a:boom", "b"}, got)
}

func TestEmitterWithoutListeners(t *testing.T) {
	e := NewEmitter("test")
	assert.False(t, e.Emit(&CriticalErrorEvent{}))
}

func TestEventPacketIdsAreUnique(t *testing.T) {
	a := NewEventPacket(&CriticalErrorEvent{}, "x")
	b := NewEventPacket(&CriticalErrorEvent{}, "x")
	assert.NotEqual(t, a.Uid, b.Uid)
}
