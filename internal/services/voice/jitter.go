package voice

import (
	"sync"

	"github.com/hraban/opus"
)

// frameSamples is 20ms of mono PCM at the call's fixed 48kHz sample rate.
const frameSamples = 960

// targetDepthFrames is the jitter buffer's target reorder window: 60ms,
// i.e. three 20ms frames, per spec.md's call-quality policy.
const targetDepthFrames = 3

// maxConcealedFrames bounds how many consecutive frames a missing
// sequence number is concealed with Opus packet-loss concealment before
// the buffer gives up and emits silence instead. spec.md calls for a
// single PLC frame followed by silence, and original_source's audio/mod.rs
// has no packet-loss concealment at all to suggest otherwise, so this is
// exactly 1 rather than a multi-frame concealment run.
const maxConcealedFrames = 1

// JitterBuffer reorders inbound Opus frames for one call participant
// within a small window, concealing short gaps with Opus PLC before
// falling back to silence.
type JitterBuffer struct {
	mu      sync.Mutex
	decoder *opus.Decoder

	primed    bool
	nextSeq   uint32
	pending   map[uint32][]byte
	missTicks int
	plcRun    int
}

// NewJitterBuffer returns a buffer that decodes through decoder.
func NewJitterBuffer(decoder *opus.Decoder) *JitterBuffer {
	return &JitterBuffer{decoder: decoder, pending: make(map[uint32][]byte)}
}

// Push enqueues a received Opus frame's payload for sequence seq. Frames
// older than the buffer's current playback position are dropped.
func (j *JitterBuffer) Push(seq uint32, opusFrame []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.primed {
		j.primed = true
		j.nextSeq = seq
	}
	if seq < j.nextSeq {
		return // already played past this point; too late to reorder in
	}
	cp := append([]byte{}, opusFrame...)
	j.pending[seq] = cp
}

// Pop returns the next 20ms of decoded PCM for playback, called once per
// frame tick regardless of whether a matching frame has arrived yet.
func (j *JitterBuffer) Pop() ([]int16, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.primed {
		return make([]int16, frameSamples), nil
	}

	if frame, ok := j.pending[j.nextSeq]; ok {
		delete(j.pending, j.nextSeq)
		pcm := make([]int16, frameSamples)
		n, err := j.decoder.Decode(frame, pcm)
		j.nextSeq++
		j.missTicks = 0
		j.plcRun = 0
		if err != nil {
			return make([]int16, frameSamples), err
		}
		return pcm[:n], nil
	}

	j.pruneStale()

	if j.missTicks < targetDepthFrames {
		j.missTicks++
		return make([]int16, frameSamples), nil
	}

	// Waited a full reorder window with nothing arriving for nextSeq: treat
	// it as lost and conceal, rather than stalling playback indefinitely.
	if j.plcRun < maxConcealedFrames {
		pcm := make([]int16, frameSamples)
		n, err := j.decoder.DecodePLC(pcm)
		j.nextSeq++
		j.missTicks = 0
		j.plcRun++
		if err != nil {
			return make([]int16, frameSamples), nil
		}
		return pcm[:n], nil
	}

	j.nextSeq++
	j.missTicks = 0
	j.plcRun = 0
	return make([]int16, frameSamples), nil
}

// pruneStale drops any buffered frame far enough behind nextSeq that it
// can never be played; caller must hold j.mu.
func (j *JitterBuffer) pruneStale() {
	for seq := range j.pending {
		if seq < j.nextSeq {
			delete(j.pending, seq)
		}
	}
}
