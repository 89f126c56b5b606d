package resource

import "sync"

// Handle is an opaque reference to a state block in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Dropper is optionally implemented by values that need cleanup when
// removed from the table.
type Dropper interface {
	Drop()
}

// EventType identifies a lifecycle event on a table entry.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event describes one lifecycle transition of a table entry.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about entry lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Table maps opaque integer handles to host-side state blocks whose
// address must never be handed to a native library directly. The native
// side holds only the handle; the host resolves it back on each callback.
//
// All methods are safe for concurrent use.
type Table struct {
	mu        sync.RWMutex
	entries   map[Handle]any
	observers []Observer
	next      Handle
	closed    bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Handle]any), next: 1}
}

// Insert stores a value and returns its handle. Returns 0 if the table is
// closed.
func (t *Table) Insert(value any) Handle {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0
	}
	h := t.next
	t.next++
	t.entries[h] = value
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, Handle: h, Value: value})
	return h
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	t.mu.RLock()
	v, ok := t.entries[h]
	t.mu.RUnlock()
	return v, ok
}

// Remove drops an entry, invoking its Drop method if it has one, and
// returns (value, true) if the handle was live.
func (t *Table) Remove(h Handle) (any, bool) {
	t.mu.Lock()
	v, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	if d, ok := v.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: h, Value: v})
	return v, true
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Clear drops all entries.
func (t *Table) Clear() {
	t.mu.Lock()
	var handles []Handle
	for h := range t.entries {
		handles = append(handles, h)
	}
	t.mu.Unlock()
	for _, h := range handles {
		t.Remove(h)
	}
}

// Close drops all entries and stops accepting inserts.
func (t *Table) Close() error {
	t.Clear()
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *Table) notify(e Event) {
	t.mu.RLock()
	obs := t.observers
	t.mu.RUnlock()
	for _, o := range obs {
		o.OnResourceEvent(e)
	}
}
