package core

const frameAvgCount = 30

// FrameMetrics keeps a rolling average of frame times so the pacing loop
// can report FPS without logging every frame.
type FrameMetrics struct {
	frameAvgCounter    uint8
	msTimes            [frameAvgCount]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{}
}

// Update feeds one frame's elapsed time, in seconds.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAvgCounter] = frameMS
	if m.frameAvgCounter == frameAvgCount-1 {
		sum := 0.0
		for i := 0; i < frameAvgCount; i++ {
			sum += m.msTimes[i]
		}
		m.msAvg = sum / float64(frameAvgCount)
	}
	m.frameAvgCounter = (m.frameAvgCounter + 1) % frameAvgCount

	m.frames++
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS >= 1000.0 {
		m.fps = float64(m.frames) * 1000.0 / m.accumulatedFrameMS
		m.frames = 0
		m.accumulatedFrameMS = 0
	}
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTimeAvg() float64 {
	return m.msAvg
}
