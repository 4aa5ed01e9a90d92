package core

import (
	"sync/atomic"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS.
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The configuration file changed on disk.
	EVENT_CODE_CONFIG_RELOADED SystemEventCode = 0x10

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// Event is a typed message queued by platform callbacks and watchers and
// drained by the engine loop.
type Event interface {
	Code() SystemEventCode
}

type QuitEvent struct{}

func (QuitEvent) Code() SystemEventCode { return EVENT_CODE_APPLICATION_QUIT }

type KeyEvent struct {
	Key     KeyCode
	Pressed bool
}

func (e KeyEvent) Code() SystemEventCode {
	if e.Pressed {
		return EVENT_CODE_KEY_PRESSED
	}
	return EVENT_CODE_KEY_RELEASED
}

// ResizedEvent carries the new framebuffer size in pixels. Zero values mean
// the window was minimized.
type ResizedEvent struct {
	Width  uint32
	Height uint32
}

func (ResizedEvent) Code() SystemEventCode { return EVENT_CODE_RESIZED }

type ConfigReloadedEvent struct {
	Path string
}

func (ConfigReloadedEvent) Code() SystemEventCode { return EVENT_CODE_CONFIG_RELOADED }

// EventQueue is a bounded, non-blocking queue of events. Producers may run
// on any goroutine; Drain must only be called from the engine loop.
type EventQueue struct {
	ch      chan Event
	dropped atomic.Uint64
	// set when a resize could not be queued, so it is never lost
	resizeLost atomic.Bool
}

func NewEventQueue(capacity int) *EventQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &EventQueue{ch: make(chan Event, capacity)}
}

// Push enqueues e without blocking. It returns false when the queue is full
// and the event was dropped.
func (q *EventQueue) Push(e Event) bool {
	select {
	case q.ch <- e:
		return true
	default:
		q.dropped.Add(1)
		if _, ok := e.(ResizedEvent); ok {
			q.resizeLost.Store(true)
		}
		return false
	}
}

// Drain hands every event queued at call time to fn and returns how many
// were delivered. Events pushed while draining wait for the next call.
func (q *EventQueue) Drain(fn func(Event)) int {
	n := len(q.ch)
	delivered := 0
	for i := 0; i < n; i++ {
		select {
		case e := <-q.ch:
			fn(e)
			delivered++
		default:
			i = n
		}
	}
	if q.resizeLost.Swap(false) {
		fn(ResizedEvent{})
		delivered++
	}
	return delivered
}

func (q *EventQueue) Len() int {
	return len(q.ch)
}

func (q *EventQueue) Dropped() uint64 {
	return q.dropped.Load()
}
