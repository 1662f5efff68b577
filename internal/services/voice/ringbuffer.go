package voice

import "sync/atomic"

// RingBuffer is a lock-free single-producer/single-consumer buffer of PCM
// samples sitting between the network's decode thread and an audio
// device's playback callback, so the callback never blocks on a mutex.
// Grounded line-for-line on original_source/src/audio/mod.rs's RingBuffer,
// reimplemented with atomic.Uint32 read/write cursors in place of Rust's
// AtomicUsize.
type RingBuffer struct {
	buf      []int16
	capacity uint32
	readPos  atomic.Uint32
	writePos atomic.Uint32
}

// NewRingBuffer returns a buffer holding up to capacity-1 samples; one
// slot is always kept empty to distinguish full from empty without a
// separate counter.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]int16, capacity), capacity: uint32(capacity)}
}

// Available reports how many samples are queued for reading.
func (r *RingBuffer) Available() int {
	w := r.writePos.Load()
	rp := r.readPos.Load()
	if w >= rp {
		return int(w - rp)
	}
	return int(r.capacity - rp + w)
}

// FreeSpace reports how many samples can still be written.
func (r *RingBuffer) FreeSpace() int {
	return int(r.capacity) - 1 - r.Available()
}

// Write appends as many samples as fit and returns the count written.
func (r *RingBuffer) Write(samples []int16) int {
	free := r.FreeSpace()
	n := len(samples)
	if n > free {
		n = free
	}
	pos := r.writePos.Load()
	for i := 0; i < n; i++ {
		r.buf[pos] = samples[i]
		pos = (pos + 1) % r.capacity
	}
	r.writePos.Store(pos)
	return n
}

// Read fills output with the oldest queued samples and returns the count
// read.
func (r *RingBuffer) Read(output []int16) int {
	avail := r.Available()
	n := len(output)
	if n > avail {
		n = avail
	}
	pos := r.readPos.Load()
	for i := 0; i < n; i++ {
		output[i] = r.buf[pos]
		pos = (pos + 1) % r.capacity
	}
	r.readPos.Store(pos)
	return n
}

// TrimTo drops the oldest queued samples until at most maxSamples remain,
// bounding playback latency after a burst of buffered frames.
func (r *RingBuffer) TrimTo(maxSamples int) {
	avail := r.Available()
	if avail <= maxSamples {
		return
	}
	skip := uint32(avail - maxSamples)
	rp := r.readPos.Load()
	r.readPos.Store((rp + skip) % r.capacity)
}
