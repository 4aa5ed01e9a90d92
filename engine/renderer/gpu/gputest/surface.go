package gputest

import (
	"sync"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/renderer/gpu"
)

// Surface is a scripted window. FramebufferExtent returns the queued
// extents front to back and then keeps returning the last one. Waiting for
// events advances the script by one step, the way a restore event would.
type Surface struct {
	mu      sync.Mutex
	extents []gpu.Extent
	queries int
	waits   int
	waited  []time.Duration
}

func NewSurface(width, height uint32) *Surface {
	return &Surface{extents: []gpu.Extent{{Width: width, Height: height}}}
}

// Script replaces the extent sequence.
func (s *Surface) Script(extents ...gpu.Extent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extents = append([]gpu.Extent(nil), extents...)
}

// Resize sets a single extent, as a finished user resize would.
func (s *Surface) Resize(width, height uint32) {
	s.Script(gpu.Extent{Width: width, Height: height})
}

func (s *Surface) FramebufferExtent() gpu.Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if len(s.extents) == 0 {
		return gpu.Extent{}
	}
	return s.extents[0]
}

func (s *Surface) WaitEventsTimeout(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits++
	s.waited = append(s.waited, timeout)
	if len(s.extents) > 1 {
		s.extents = s.extents[1:]
	}
}

func (s *Surface) Waits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waits
}

func (s *Surface) WaitTimeouts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waited...)
}
