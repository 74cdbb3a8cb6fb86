package core

import "github.com/spaghettifunk/anima-rt/engine/containers"

// Number of frames averaged for the frame time.
const AVG_COUNT uint8 = 30

// FrameMetrics keeps a rolling frame time average and a frames-per-second counter.
type FrameMetrics struct {
	msTimes      *containers.RingQueue[float64]
	msAvg        float64
	frames       int32
	accumulateMS float64
	fps          float64
	total        uint64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{msTimes: containers.NewRingQueue[float64](int(AVG_COUNT))}
}

// Update records one frame that took frameSeconds.
func (m *FrameMetrics) Update(frameSeconds float64) {
	frameMS := frameSeconds * 1000.0
	m.msTimes.Push(frameMS)

	sum := 0.0
	m.msTimes.Each(func(t float64) { sum += t })
	m.msAvg = sum / float64(m.msTimes.Len())

	m.accumulateMS += frameMS
	if m.accumulateMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulateMS -= 1000
		m.frames = 0
	}
	m.frames++
	m.total++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last AVG_COUNT frames.
func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}

// Frames is the number of frames recorded since creation.
func (m *FrameMetrics) Frames() uint64 {
	return m.total
}
