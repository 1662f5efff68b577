package voice_test

import (
	"testing"

	"github.com/hraban/opus"

	"wsp/internal/services/voice"
)

func newTestDecoder(t *testing.T) *opus.Decoder {
	t.Helper()
	dec, err := opus.NewDecoder(48000, 1)
	if err != nil {
		t.Fatalf("opus.NewDecoder: %v", err)
	}
	return dec
}

func encodeSilentFrame(t *testing.T) []byte {
	t.Helper()
	enc, err := opus.NewEncoder(48000, 1, opus.AppVoIP)
	if err != nil {
		t.Fatalf("opus.NewEncoder: %v", err)
	}
	pcm := make([]int16, 960)
	out := make([]byte, 4000)
	n, err := enc.Encode(pcm, out)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return out[:n]
}

func TestJitterBufferDeliversInOrderSequence(t *testing.T) {
	jb := voice.NewJitterBuffer(newTestDecoder(t))
	frame := encodeSilentFrame(t)

	jb.Push(0, frame)
	jb.Push(1, frame)

	pcm, err := jb.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if len(pcm) == 0 {
		t.Fatal("Pop returned empty PCM for a present frame")
	}
}

func TestJitterBufferDropsFramesOlderThanPlaybackPosition(t *testing.T) {
	jb := voice.NewJitterBuffer(newTestDecoder(t))
	frame := encodeSilentFrame(t)

	jb.Push(5, frame)
	if _, err := jb.Pop(); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	// A frame for a sequence already consumed must be silently dropped,
	// not resurrected into a later Pop.
	jb.Push(5, frame)
	jb.Push(6, frame)
	pcm, err := jb.Pop()
	if err != nil {
		t.Fatalf("Pop after stale push: %v", err)
	}
	if len(pcm) == 0 {
		t.Fatal("expected concealment or silence, got empty PCM")
	}
}

func TestJitterBufferConcealsMissingFrameEventually(t *testing.T) {
	jb := voice.NewJitterBuffer(newTestDecoder(t))
	frame := encodeSilentFrame(t)

	jb.Push(0, frame)
	if _, err := jb.Pop(); err != nil {
		t.Fatalf("Pop seq 0: %v", err)
	}
	// seq 1 never arrives; Pop must eventually stop waiting and move on
	// rather than stalling forever.
	for i := 0; i < 10; i++ {
		if _, err := jb.Pop(); err != nil {
			t.Fatalf("Pop while waiting for missing frame: %v", err)
		}
	}
}
