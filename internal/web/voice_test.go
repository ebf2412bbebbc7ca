package web

import (
	"context"
	"testing"
)

func drainFrames(frames <-chan []int16) [][]int16 {
	var out [][]int16
	for {
		select {
		case f := <-frames:
			out = append(out, f)
		default:
			return out
		}
	}
}

// The browser chunks audio by its own buffer sizes; the bridge re-frames it
// into fixed-size capture frames.
func TestBrowserBridge_ReframesAudio(t *testing.T) {
	b := &browserBridge{frameSamples: 4}
	frames, err := b.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	b.enqueue([]int16{1, 2, 3})
	if got := drainFrames(frames); len(got) != 0 {
		t.Fatalf("partial input emitted %d frames, want 0", len(got))
	}

	// 3 pending + 6 new = 9 samples: two full frames, one sample left over.
	b.enqueue([]int16{4, 5, 6, 7, 8, 9})
	got := drainFrames(frames)
	if len(got) != 2 {
		t.Fatalf("emitted %d frames, want 2", len(got))
	}
	want := [][]int16{{1, 2, 3, 4}, {5, 6, 7, 8}}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("frame %d has %d samples, want %d", i, len(got[i]), len(want[i]))
		}
		for j := range want[i] {
			if got[i][j] != want[i][j] {
				t.Errorf("frame %d sample %d = %d, want %d", i, j, got[i][j], want[i][j])
			}
		}
	}

	// The tail goes out as a short frame when capture ends.
	b.flush()
	tail := drainFrames(frames)
	if len(tail) != 1 || len(tail[0]) != 1 || tail[0][0] != 9 {
		t.Fatalf("flush emitted %v, want one frame [9]", tail)
	}
}

func TestBrowserBridge_DropsAudioAfterStop(t *testing.T) {
	b := &browserBridge{frameSamples: 2}
	frames, err := b.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	b.enqueue([]int16{1})
	b.Stop()
	b.enqueue([]int16{2, 3, 4})
	b.flush()

	// The channel is closed and empty; nothing was sent after Stop.
	for f := range frames {
		t.Fatalf("frame %v delivered after Stop", f)
	}
}
