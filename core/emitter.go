package core

import "sync"

// Listener receives emitted packets. Listeners run synchronously on the
// emitting goroutine, in registration order.
type Listener func(packet *EventPacket)

// Emitter fans events out to listeners registered by event id.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	relayer   string
}

func NewEmitter(relayer string) *Emitter {
	return &Emitter{
		listeners: make(map[string][]Listener),
		relayer:   relayer,
	}
}

// On registers listener for events whose GetId() equals id.
func (e *Emitter) On(id string, listener Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[id] = append(e.listeners[id], listener)
}

// Emit wraps event in a packet and delivers it. It returns false when no
// listener was registered for the event.
func (e *Emitter) Emit(event IEvent) bool {
	e.mu.RLock()
	listeners := e.listeners[event.GetId()]
	e.mu.RUnlock()
	if len(listeners) == 0 {
		return false
	}
	packet := NewEventPacket(event, e.relayer)
	for _, l := range listeners {
		l(packet)
	}
	return true
}
