package montecarlo

// Window is a fixed-length FIFO over the most recent values. Push evicts the
// oldest value once the window is full.
type Window struct {
	buf  []float64
	head int // index of the oldest value
	size int
}

// NewWindow returns a window of capacity len(init) filled with init.
func NewWindow(init []float64) *Window {
	buf := make([]float64, len(init))
	copy(buf, init)
	return &Window{buf: buf, size: len(init)}
}

// NewEmptyWindow returns a window of the given capacity holding no values.
func NewEmptyWindow(capacity int) *Window {
	return &Window{buf: make([]float64, capacity)}
}

func (w *Window) Cap() int { return len(w.buf) }
func (w *Window) Len() int { return w.size }

func (w *Window) Push(v float64) {
	if len(w.buf) == 0 {
		return
	}
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = v
		w.size++
		return
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
}

// Values copies the window contents, oldest first, into dst and returns it.
// dst is reallocated if it is too small.
func (w *Window) Values(dst []float64) []float64 {
	if cap(dst) < w.size {
		dst = make([]float64, w.size)
	}
	dst = dst[:w.size]
	for i := 0; i < w.size; i++ {
		dst[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return dst
}
