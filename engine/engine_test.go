package engine

import (
	"testing"

	"github.com/spaghettifunk/anima-rt/engine/config"
	"github.com/spaghettifunk/anima-rt/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeApp struct {
	resizes   [][2]uint32
	resizeErr error
}

func (f *fakeApp) Init(width, height uint32) error { return nil }
func (f *fakeApp) Update(deltaTime float64) bool   { return true }
func (f *fakeApp) Render() error                   { return nil }
func (f *fakeApp) Cleanup() error                  { return nil }
func (f *fakeApp) OnResize(width, height uint32) error {
	f.resizes = append(f.resizes, [2]uint32{width, height})
	return f.resizeErr
}

func newTestEngine(app Application) *Engine {
	e := &Engine{
		config: &ApplicationConfig{StartWidth: 800, StartHeight: 600},
		app:    app,
		events: core.NewEventBus(),
		clock:  core.NewClock(),
		width:  800,
		height: 600,
	}
	e.clock.Start()
	e.isRunning.Store(true)
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	return e
}

func resized(w, h uint32) core.EventContext {
	var data core.EventContext
	data.Data.U32[0] = w
	data.Data.U32[1] = h
	return data
}

func TestQuitEventStopsLoop(t *testing.T) {
	e := newTestEngine(&fakeApp{})
	assert.True(t, e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{}))
	assert.False(t, e.isRunning.Load())
}

func TestMinimizeSuspendsAndRestoreResumes(t *testing.T) {
	app := &fakeApp{}
	e := newTestEngine(app)

	e.events.Fire(core.EVENT_CODE_RESIZED, nil, resized(0, 0))
	assert.True(t, e.isSuspended)
	assert.Empty(t, app.resizes)

	e.events.Fire(core.EVENT_CODE_RESIZED, nil, resized(800, 600))
	assert.False(t, e.isSuspended)
	assert.Empty(t, app.resizes, "same extent is not a resize")
	assert.True(t, e.isRunning.Load())
}

func TestRestoreDropsMinimizedTime(t *testing.T) {
	e := newTestEngine(&fakeApp{})
	e.lastTime = -3600

	e.events.Fire(core.EVENT_CODE_RESIZED, nil, resized(0, 0))
	assert.Equal(t, float64(-3600), e.lastTime, "minimize leaves the frame clock alone")

	e.events.Fire(core.EVENT_CODE_RESIZED, nil, resized(800, 600))
	assert.GreaterOrEqual(t, e.lastTime, float64(0))
	assert.Equal(t, e.clock.Elapsed(), e.lastTime)
}

func TestRefusedResizeStopsEngine(t *testing.T) {
	app := &fakeApp{resizeErr: core.ErrResizeUnsupported}
	e := newTestEngine(app)

	e.events.Fire(core.EVENT_CODE_RESIZED, nil, resized(1024, 768))
	require.Len(t, app.resizes, 1)
	assert.Equal(t, [2]uint32{1024, 768}, app.resizes[0])
	assert.False(t, e.isRunning.Load())
}

func TestRunRequiresInitialize(t *testing.T) {
	e := newTestEngine(&fakeApp{})
	e.currentStage = EngineStageBootComplete
	assert.ErrorIs(t, e.Run(), core.ErrInitialization)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "running", EngineStageRunning.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())
}

func TestApplicationConfigFrom(t *testing.T) {
	cfg := config.Default()
	ac := ApplicationConfigFrom(cfg)
	assert.Equal(t, cfg.Window.Width, ac.StartWidth)
	assert.Equal(t, cfg.Window.Height, ac.StartHeight)
	assert.Equal(t, cfg.Window.Name, ac.Name)
	assert.Equal(t, cfg.Renderer.AssetsDir, ac.AssetsDir)
	assert.True(t, ac.Validation)
	assert.Zero(t, ac.MaxFrames)
}
