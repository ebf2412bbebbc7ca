package builder

import "testing"

func TestProgress_StepScale(t *testing.T) {
	p := NewParser()
	tr := &progressTracker{}

	p.Append("Analyzing...\n")
	if got := tr.observe(p); got != 4 {
		t.Errorf("progress with 0 steps = %d, want 4", got)
	}

	p.Append("[BUILD] step1\n[BUILD] step2\n")
	if got := tr.observe(p); got != 16 {
		t.Errorf("progress with 2 steps = %d, want 16", got)
	}

	p.Append("[BUILD] step3\n")
	if got := tr.observe(p); got != 22 {
		t.Errorf("progress with 3 steps = %d, want 22", got)
	}
}

func TestProgress_CappedBelowMarkerFloor(t *testing.T) {
	p := NewParser()
	tr := &progressTracker{}

	// Enough steps to blow past the cap.
	for range 30 {
		p.Append("[BUILD] step\n")
	}
	if got := tr.observe(p); got != 89 {
		t.Errorf("pre-marker progress = %d, want capped at 89", got)
	}
}

func TestProgress_MarkerJumpAndComplete(t *testing.T) {
	p := NewParser()
	tr := &progressTracker{}

	p.Append("[BUILD] one\n")
	tr.observe(p)

	p.Append("<!DOCTYPE html><html>")
	if got := tr.observe(p); got != 90 {
		t.Errorf("progress at marker = %d, want 90", got)
	}

	p.Append("more html")
	if got := tr.observe(p); got != 90 {
		t.Errorf("progress held at marker = %d, want 90", got)
	}

	if got := tr.complete(); got != 100 {
		t.Errorf("complete() = %d, want 100", got)
	}
}

// TestProgress_Monotone feeds an adversarial sequence and checks the emitted
// series never decreases.
func TestProgress_Monotone(t *testing.T) {
	p := NewParser()
	tr := &progressTracker{}

	chunks := []string{
		"[BUILD] a\n[BUILD] b\n[BUILD] c\n",
		"plain text\n",
		"<!DOCTYPE html>",
		"<html></html>",
	}

	last := 0
	for _, c := range chunks {
		p.Append(c)
		got := tr.observe(p)
		if got < last {
			t.Fatalf("progress decreased: %d after %d", got, last)
		}
		last = got
	}
	if got := tr.complete(); got < last {
		t.Fatalf("complete() = %d below last emitted %d", got, last)
	}
}
