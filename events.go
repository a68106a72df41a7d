package granite

// Event kinds observable through the world's Events hub. Collision
// events are broadphase-level: a pair is active while its motion
// bounds overlap and at least one participant is awake.
const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
	ON_SLEEP
	ON_WAKE
)

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

type CollisionEnterEvent struct {
	A ObjectRef
	B ObjectRef
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	A ObjectRef
	B ObjectRef
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	A ObjectRef
	B ObjectRef
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

type SleepEvent struct {
	Object ObjectRef
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Object ObjectRef
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

type eventPairKey struct {
	a ObjectRef
	b ObjectRef
}

// makeEventPairKey normalizes the pair ordering so (a,b) and (b,a)
// track as one pair.
func makeEventPairKey(a, b ObjectRef) eventPairKey {
	if b.Kind < a.Kind || (b.Kind == a.Kind && b.Index < a.Index) {
		a, b = b, a
	}
	return eventPairKey{a: a, b: b}
}

// Events buffers world events during Simulate and dispatches them to
// subscribed listeners once the frame is done. Listeners may query the
// world but must not create or destroy objects during dispatch.
type Events struct {
	listeners map[EventType][]EventListener

	buffer []Event

	// collision tracking for Enter/Stay/Exit detection
	previousActivePairs map[eventPairKey]bool
	currentActivePairs  map[eventPairKey]bool
}

func newEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[eventPairKey]bool),
		currentActivePairs:  make(map[eventPairKey]bool),
	}
}

// Subscribe adds a listener for an event type.
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

func (e *Events) recordPair(a, b ObjectRef) {
	e.currentActivePairs[makeEventPairKey(a, b)] = true
}

// dropObject forgets tracked pairs involving a destroyed object.
func (e *Events) dropObject(ref ObjectRef) {
	for pair := range e.previousActivePairs {
		if pair.a == ref || pair.b == ref {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair := range e.currentActivePairs {
		if pair.a == ref || pair.b == ref {
			delete(e.currentActivePairs, pair)
		}
	}
}

func (e *Events) emitSleep(ref ObjectRef) {
	e.buffer = append(e.buffer, SleepEvent{Object: ref})
}

func (e *Events) emitWake(ref ObjectRef) {
	e.buffer = append(e.buffer, WakeEvent{Object: ref})
}

// processCollisionEvents compares current and previous pairs to detect
// Enter/Stay/Exit.
func (e *Events) processCollisionEvents() {
	for pair := range e.currentActivePairs {
		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionStayEvent{A: pair.a, B: pair.b})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{A: pair.a, B: pair.b})
		}
	}
	for pair := range e.previousActivePairs {
		if !e.currentActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionExitEvent{A: pair.a, B: pair.b})
		}
	}

	// swap for next frame and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

// flush sends all buffered events and clears the buffer.
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
