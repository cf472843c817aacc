package core

import "github.com/google/uuid"

type EventPacket struct {
	Event   IEvent
	Uid     string // Unique identifier for tracking the event packet.
	Relayer string // Identifier of the component that emitted the event.
}

func NewEventPacket(event IEvent, relayer string) *EventPacket {
	uid := uuid.New().String() // Generate a unique identifier for the event packet.
	return &EventPacket{
		Event:   event,
		Uid:     uid,
		Relayer: relayer,
	}
}
