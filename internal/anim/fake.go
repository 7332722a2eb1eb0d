package anim

// FakeOutput records rendered frames for test assertions.
type FakeOutput struct {
	// Frames contains every frame rendered, oldest first.
	Frames []Frame

	// OnRender, if set, is called after each frame is recorded.
	OnRender func(Frame)
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Render records the frame.
func (f *FakeOutput) Render(fr Frame) {
	f.Frames = append(f.Frames, fr)
	if f.OnRender != nil {
		f.OnRender(fr)
	}
}

// Last returns the most recently rendered frame and whether any exists.
func (f *FakeOutput) Last() (Frame, bool) {
	if len(f.Frames) == 0 {
		return Frame{}, false
	}
	return f.Frames[len(f.Frames)-1], true
}
