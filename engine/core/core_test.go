package core

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		invariant bool
		fatal     bool
	}{
		{"creation", NewCreationError("image", errors.New("out of memory")), KindCreation, false, true},
		{"fence timeout", NewInvariantError("frame wait", ErrFenceTimeout), KindInvariant, true, true},
		{"device lost", NewDeviceError("submit", errors.New("device lost")), KindDevice, false, true},
		{"transient", &RendererError{Kind: KindTransient, Op: "acquire", Err: errors.New("out of date")}, KindTransient, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.invariant, IsInvariant(tt.err))
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	err := errors.Wrap(NewInvariantError("frame wait", ErrFenceTimeout), "submit frame 7")
	assert.ErrorIs(t, err, ErrFenceTimeout)
	assert.True(t, IsInvariant(err))
	assert.Contains(t, err.Error(), "invariant failure in frame wait")

	var re *RendererError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "frame wait", re.Op)
}

func TestIsFatalOnForeignErrors(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(fmt.Errorf("plain")))
	_, ok := KindOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestEventQueueBounds(t *testing.T) {
	q := NewEventQueue(2)
	assert.True(t, q.Push(QuitEvent{}))
	assert.True(t, q.Push(KeyEvent{Key: KEY_A, Pressed: true}))
	assert.False(t, q.Push(KeyEvent{Key: KEY_D, Pressed: true}))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(1), q.Dropped())

	var codes []SystemEventCode
	n := q.Drain(func(e Event) { codes = append(codes, e.Code()) })
	assert.Equal(t, 2, n)
	assert.Equal(t, []SystemEventCode{EVENT_CODE_APPLICATION_QUIT, EVENT_CODE_KEY_PRESSED}, codes)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueueNeverLosesResize(t *testing.T) {
	q := NewEventQueue(1)
	q.Push(QuitEvent{})
	assert.False(t, q.Push(ResizedEvent{Width: 800, Height: 600}))

	var got []Event
	q.Drain(func(e Event) { got = append(got, e) })
	require.Len(t, got, 2)
	assert.Equal(t, ResizedEvent{}, got[1])

	got = nil
	q.Drain(func(e Event) { got = append(got, e) })
	assert.Empty(t, got)
}

func TestEventQueueConcurrentProducers(t *testing.T) {
	q := NewEventQueue(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(KeyEvent{Key: KEY_W})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, q.Drain(func(Event) {}))
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestEventCodes(t *testing.T) {
	assert.Equal(t, EVENT_CODE_KEY_RELEASED, KeyEvent{Key: KEY_A}.Code())
	assert.Equal(t, EVENT_CODE_RESIZED, ResizedEvent{}.Code())
	assert.Equal(t, EVENT_CODE_CONFIG_RELOADED, ConfigReloadedEvent{}.Code())
}

func TestInputState(t *testing.T) {
	is := NewInputState()
	is.ProcessKey(KEY_W, true)
	assert.True(t, is.IsKeyDown(KEY_W))
	assert.True(t, is.WasKeyPressed(KEY_W))

	is.Update()
	assert.True(t, is.IsKeyDown(KEY_W))
	assert.False(t, is.WasKeyPressed(KEY_W))

	is.ProcessKey(KEY_W, false)
	assert.True(t, is.IsKeyUp(KEY_W))

	is.ProcessKey(KEYS_MAX_KEYS, true)
	assert.False(t, is.IsKeyDown(KEYS_MAX_KEYS))
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	// the window is rolling, old samples fall out
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.020)
	}
	assert.InDelta(t, 20.0, m.FrameTime(), 1e-9)

	// 900ms so far, no full second yet
	assert.Zero(t, m.FPS())
	for i := 0; i < 4; i++ {
		m.Update(0.030)
	}
	assert.Equal(t, float64(2*AVG_COUNT+4), m.FPS())
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Equal(t, 0.0, c.Elapsed())

	c.Start()
	assert.Eventually(t, func() bool {
		c.Update()
		return c.Elapsed() > 0
	}, time.Second, time.Millisecond)

	c.Stop()
	stopped := c.Elapsed()
	c.Update()
	assert.Equal(t, stopped, c.Elapsed())
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{
		"debug":   LogLevelDebug,
		" WARN ":  LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"fatal":   LogLevelFatal,
		"info":    LogLevelInfo,
		"bogus":   LogLevelInfo,
	} {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
	assert.Equal(t, "warn", LogLevelWarn.String())
}

func TestDebugNamesAreUnique(t *testing.T) {
	a, b := DebugName("resolve"), DebugName("resolve")
	assert.True(t, strings.HasPrefix(a, "resolve-"))
	assert.NotEqual(t, a, b)
}
