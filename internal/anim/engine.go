package anim

import "time"

// Engine plays frame sequences on an Output, advancing one frame each time
// the accumulated tick time crosses the frame period. Not safe for
// concurrent use: it is owned by the orchestration task.
type Engine struct {
	out         Output
	framePeriod time.Duration
	frames      []Frame

	mode    Mode
	frame   int
	elapsed time.Duration
}

// NewEngine creates an idle engine rendering Sweep to out.
func NewEngine(out Output, framePeriod time.Duration) *Engine {
	return &Engine{
		out:         out,
		framePeriod: framePeriod,
		frames:      Sweep,
		mode:        ModeIdle,
	}
}

// Request starts the animation for m from its first frame, replacing
// whatever is playing. Requests are not queued.
func (e *Engine) Request(m Mode) {
	e.mode = m
	e.frame = 0
}

// Tick advances time by delta. When a frame period has elapsed and a
// non-idle mode is active the current frame is rendered; after the last
// frame the engine returns to idle.
func (e *Engine) Tick(delta time.Duration) {
	e.elapsed += delta
	if e.elapsed < e.framePeriod {
		return
	}
	e.elapsed = 0

	if e.mode == ModeIdle {
		return
	}

	e.out.Render(e.frames[e.frame])
	e.frame++
	if e.frame >= len(e.frames) {
		e.mode = ModeIdle
		e.frame = 0
	}
}

// Mode returns the active mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// FrameIndex returns the index of the next frame to render.
func (e *Engine) FrameIndex() int {
	return e.frame
}
