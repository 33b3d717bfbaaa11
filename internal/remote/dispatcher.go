package remote

import (
	"encoding/json"
	"sync"
)

// FrameHandler receives every frame read from the control socket.
// reply writes a frame back on the same socket.
type FrameHandler interface {
	HandleFrame(raw string, reply func(frame string) error)
}

// EventCallback receives a decoded event object.
type EventCallback func(event map[string]any)

type registration struct {
	id       uint64
	key      string
	value    string
	hasValue bool
	callback EventCallback
}

// Dispatcher is the default FrameHandler. It answers heartbeats and routes
// decoded events to one-shot callbacks.
//
// A callback registered for key fires for the first event that contains
// key (and, for RegisterValue, whose key equals value), then is removed.
// When no top-level key matches, an event carrying params.data as a JSON
// document is unwrapped and matched on its "event" member.
type Dispatcher struct {
	loggable

	mu        sync.Mutex
	nextID    uint64
	callbacks []registration
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a one-shot callback for events containing key.
// It returns an id for Unregister.
func (d *Dispatcher) Register(key string, callback EventCallback) uint64 {
	return d.add(registration{key: key, callback: callback})
}

// RegisterValue adds a one-shot callback for events whose key equals value.
func (d *Dispatcher) RegisterValue(key, value string, callback EventCallback) uint64 {
	return d.add(registration{key: key, value: value, hasValue: true, callback: callback})
}

func (d *Dispatcher) add(r registration) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	r.id = d.nextID
	d.callbacks = append(d.callbacks, r)
	return r.id
}

// Unregister removes a callback that has not fired yet.
func (d *Dispatcher) Unregister(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(id)
}

// Pending returns the number of registered callbacks.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.callbacks)
}

func (d *Dispatcher) removeLocked(id uint64) {
	for i, r := range d.callbacks {
		if r.id == id {
			d.callbacks = append(d.callbacks[:i], d.callbacks[i+1:]...)
			return
		}
	}
}

// HandleFrame implements FrameHandler.
func (d *Dispatcher) HandleFrame(raw string, reply func(frame string) error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		d.logDebug("ignoring frame", "error", err)
		return
	}

	switch frame.Type {
	case FrameHeartbeat:
		if err := reply(Frame{Type: FrameHeartbeat}.String()); err != nil {
			d.logWarn("heartbeat reply failed", "error", err)
		}
	case FrameConnect:
		d.logDebug("endpoint connected", "endpoint", frame.Endpoint)
	case FrameDisconnect:
		d.logInfo("endpoint disconnected", "endpoint", frame.Endpoint)
	case FrameError:
		d.logWarn("device reported error", "endpoint", frame.Endpoint, "data", frame.Data)
	case FrameMessage, FrameJSON, FrameEvent:
		var event map[string]any
		if err := json.Unmarshal([]byte(frame.Data), &event); err != nil {
			d.logDebug("ignoring non-object payload", "data", truncate(frame.Data, 80))
			return
		}
		d.dispatch(event)
	}
}

func (d *Dispatcher) dispatch(event map[string]any) {
	if cb := d.take(func(r registration) bool { return matches(r, event) }); cb != nil {
		cb(event)
		return
	}

	params, _ := event["params"].(map[string]any)
	raw, _ := params["data"].(string)
	if raw == "" {
		return
	}
	var inner map[string]any
	if err := json.Unmarshal([]byte(raw), &inner); err != nil {
		return
	}
	name, _ := inner["event"].(string)
	if name == "" {
		return
	}
	if cb := d.take(func(r registration) bool { return r.key == name }); cb != nil {
		cb(inner)
	}
}

// take removes and returns the first matching callback.
func (d *Dispatcher) take(match func(registration) bool) EventCallback {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.callbacks {
		if match(r) {
			d.removeLocked(r.id)
			return r.callback
		}
	}
	return nil
}

func matches(r registration, event map[string]any) bool {
	v, ok := event[r.key]
	if !ok {
		return false
	}
	if !r.hasValue {
		return true
	}
	s, isString := v.(string)
	return isString && s == r.value
}
