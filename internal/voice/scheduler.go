package voice

import (
	"sync"
	"time"
)

// Sink receives scheduled playback buffers. The production sink hands frames
// to the client's audio output; tests record the schedule.
type Sink interface {
	// Play queues pcm to start at the given time.
	Play(start time.Time, pcm []int16)
	// Halt stops any buffers that are still playing.
	Halt()
}

// Scheduler serializes decoded audio frames onto a single playback timeline.
// Frames reserve a sequence number at arrival and may finish decoding in any
// order; playback always happens in reservation order, each frame starting at
// the later of "now" and the previous frame's scheduled end, so the output has
// no gaps and no overlaps regardless of decode timing or network jitter.
type Scheduler struct {
	mu sync.Mutex

	clock      func() time.Time
	sink       Sink
	sampleRate int

	nextSeq   int
	playSeq   int
	pending   map[int][]int16
	nextStart time.Time
}

// NewScheduler creates a scheduler feeding sink. A nil clock uses time.Now.
func NewScheduler(sink Sink, sampleRate int, clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &Scheduler{
		clock:      clock,
		sink:       sink,
		sampleRate: sampleRate,
		pending:    make(map[int][]int16),
	}
}

// Reserve assigns the next sequence number. Call it when a frame arrives,
// before handing the frame to the decoder.
func (s *Scheduler) Reserve() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// Complete delivers a decoded frame for its reserved slot and plays every
// frame that is now contiguous from the playback front.
func (s *Scheduler) Complete(seq int, pcm []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[seq] = pcm
	for {
		next, ok := s.pending[s.playSeq]
		if !ok {
			return
		}
		delete(s.pending, s.playSeq)
		s.playSeq++

		start := s.clock()
		if s.nextStart.After(start) {
			start = s.nextStart
		}
		s.sink.Play(start, next)
		s.nextStart = start.Add(frameDuration(len(next), s.sampleRate))
	}
}

// Reset drops undelivered frames, halts in-flight playback, and rewinds the
// timeline. Part of session teardown.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[int][]int16)
	s.nextSeq = 0
	s.playSeq = 0
	s.nextStart = time.Time{}
	s.sink.Halt()
}

func frameDuration(samples, rate int) time.Duration {
	return time.Duration(samples) * time.Second / time.Duration(rate)
}
