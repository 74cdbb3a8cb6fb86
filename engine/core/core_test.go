package core

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	SetLogOutput(io.Discard)
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	buf := tr.Track(ResourceBuffer, "spheres")
	mem := tr.Track(ResourceMemory, "spheres")
	img := tr.Track(ResourceImage, "target")
	assert.Len(t, tr.Live(), 3)
	assert.Equal(t, 3, tr.Total())

	require.NoError(t, tr.Release(mem))
	require.NoError(t, tr.Release(buf))
	live := tr.Live()
	require.Len(t, live, 1)
	assert.Equal(t, ResourceImage, live[0].Kind)
	assert.Equal(t, 1, tr.ReportLeaks())

	require.NoError(t, tr.Release(img))
	assert.Empty(t, tr.Live())
	assert.Zero(t, tr.ReportLeaks())
}

func TestTrackerDoubleRelease(t *testing.T) {
	tr := NewTracker()
	id := tr.Track(ResourceFence, "compute")
	require.NoError(t, tr.Release(id))
	assert.Error(t, tr.Release(id))
	assert.Error(t, tr.Release(uuid.New()))
}

func TestTrackerLiveSorted(t *testing.T) {
	tr := NewTracker()
	tr.Track(ResourceSemaphore, "b")
	tr.Track(ResourceBuffer, "z")
	tr.Track(ResourceSemaphore, "a")
	live := tr.Live()
	require.Len(t, live, 3)
	assert.Equal(t, "z", live[0].Name)
	assert.Equal(t, "a", live[1].Name)
	assert.Equal(t, "b", live[2].Name)
}

func TestTeardownReverseOrder(t *testing.T) {
	var order []string
	var td Teardown
	for _, name := range []string{"buffers", "image", "pipeline"} {
		name := name
		td.PushFunc(name, func() { order = append(order, name) })
	}
	assert.Equal(t, 3, td.Len())
	require.NoError(t, td.Unwind())
	assert.Equal(t, []string{"pipeline", "image", "buffers"}, order)
	assert.Zero(t, td.Len())
}

func TestTeardownContinuesOnError(t *testing.T) {
	boom := errors.New("boom")
	ran := 0
	var td Teardown
	td.PushFunc("first", func() { ran++ })
	td.Push("second", func() error { return boom })
	td.PushFunc("third", func() { ran++ })

	err := td.Unwind()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, ran)
}

func TestClock(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClock()
	c.now = func() time.Time { return now }

	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)
}

func TestFrameMetrics(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.01)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), m.Frames())

	for i := 0; i < 100; i++ {
		m.Update(0.01)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.InDelta(t, 100.0, m.FPS(), 1)
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	var got []uint32
	first := &struct{ n int }{}
	second := &struct{ n int }{}

	handler := func(handled bool) FnOnEvent {
		return func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
			got = append(got, data.Data.U32[0])
			return handled
		}
	}
	require.True(t, bus.Register(EVENT_CODE_RESIZED, first, handler(false)))
	require.True(t, bus.Register(EVENT_CODE_RESIZED, second, handler(true)))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, first, handler(false)))

	ctx := EventContext{}
	ctx.Data.U32[0] = 640
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []uint32{640, 640}, got)

	assert.True(t, bus.Unregister(EVENT_CODE_RESIZED, second))
	assert.False(t, bus.Unregister(EVENT_CODE_RESIZED, second))
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.False(t, bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, ctx))

	bus.Shutdown()
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
}

func TestSetLogLevel(t *testing.T) {
	assert.NoError(t, SetLogLevel("debug"))
	assert.Error(t, SetLogLevel("chatty"))
	assert.NoError(t, SetLogLevel("info"))
}
