package builder

// Progress percentages. Before the artifact marker appears, progress is a
// bounded linear estimate from the step count; visible progress is capped
// below the marker floor so it never implies the document has started. Once
// the marker appears progress holds at the floor until the stream ends.
const (
	progressStart    = 4  // streaming has begun, nothing parsed yet
	progressPerStep  = 6  // each [BUILD] step in the log
	progressPreCap   = 89 // hard cap before the marker
	progressMarker   = 90 // floor once the artifact is streaming
	progressComplete = 100
)

// progressTracker derives the monotone progress signal for one generation run.
// Values never decrease within a run; a new run uses a fresh tracker (which is
// what resets progress to zero).
type progressTracker struct {
	last int
}

// observe computes progress from the parser state and clamps it monotone.
func (t *progressTracker) observe(p *Parser) int {
	var pct int
	if p.MarkerSeen() {
		pct = progressMarker
	} else {
		pct = min(progressStart+progressPerStep*p.Steps(), progressPreCap)
	}
	return t.clamp(pct)
}

// complete marks the terminal progress value.
func (t *progressTracker) complete() int {
	return t.clamp(progressComplete)
}

// clamp enforces monotonicity and records the emitted value.
func (t *progressTracker) clamp(pct int) int {
	if pct < t.last {
		return t.last
	}
	t.last = pct
	return pct
}

// current returns the last emitted value without advancing it.
func (t *progressTracker) current() int {
	return t.last
}
