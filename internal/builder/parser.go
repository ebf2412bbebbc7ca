// Package builder implements the website-generation pipeline: it consumes the
// incremental token stream produced by the generation service, splits it into a
// narrative build log and the HTML artifact, derives a coarse progress signal,
// and feeds the debounced project persistence.
package builder

import (
	"strings"
)

const (
	// ArtifactMarker is the fixed token whose first occurrence separates the
	// narrative log from the artifact. Everything before it is log text,
	// everything from it onward is the document under construction.
	ArtifactMarker = "<!DOCTYPE html"

	// StepMarker is the step-delimiter token the generation prompt instructs
	// the model to emit once per build step. Occurrences in the log region
	// drive the pre-artifact progress estimate.
	StepMarker = "[BUILD]"
)

// Parser incrementally classifies an accumulated chunk stream into a log
// region and an artifact region.
//
// The scan is forward-only: each Append costs O(len(chunk)). Once the artifact
// marker is found its byte offset is remembered; step markers are only counted
// in the log region. Parser is not safe for concurrent use - the pipeline owns
// one per run.
type Parser struct {
	buf strings.Builder

	markerAt int // byte offset of ArtifactMarker, -1 until seen
	scanned  int // bytes already scanned for markers
	steps    int
}

// NewParser creates an empty Parser.
func NewParser() *Parser {
	return &Parser{markerAt: -1}
}

// Append adds the next stream chunk and advances the marker scan.
func (p *Parser) Append(chunk string) {
	if chunk == "" {
		return
	}
	p.buf.WriteString(chunk)
	p.scan()
}

// scan advances over the unscanned region, counting step markers and looking
// for the artifact marker. Each marker rescans an overlap of its own length
// minus one byte: a match that straddles the old boundary is found exactly
// once, and a match completed earlier can never be re-found.
func (p *Parser) scan() {
	if p.markerAt >= 0 {
		return // both markers are irrelevant once the artifact started
	}

	s := p.buf.String()

	markerFrom := max(p.scanned-(len(ArtifactMarker)-1), 0)
	if i := strings.Index(s[markerFrom:], ArtifactMarker); i >= 0 {
		p.markerAt = markerFrom + i
		// Recount once against the final log region; steps beyond the marker
		// belong to the artifact, not the log.
		p.steps = strings.Count(s[:p.markerAt], StepMarker)
		p.scanned = len(s)
		return
	}

	stepFrom := max(p.scanned-(len(StepMarker)-1), 0)
	p.steps += strings.Count(s[stepFrom:], StepMarker)
	p.scanned = len(s)
}

// MarkerSeen reports whether the artifact marker has appeared.
func (p *Parser) MarkerSeen() bool {
	return p.markerAt >= 0
}

// Steps returns the number of step markers seen in the log region.
func (p *Parser) Steps() int {
	return p.steps
}

// LogText returns all accumulated text before the artifact marker. If the
// marker has not appeared it equals the entire buffer.
func (p *Parser) LogText() string {
	s := p.buf.String()
	if p.markerAt < 0 {
		return s
	}
	return s[:p.markerAt]
}

// ArtifactText returns all accumulated text from the artifact marker onward,
// stripped of wrapping code-fence decorations. Empty until the marker appears.
func (p *Parser) ArtifactText() string {
	if p.markerAt < 0 {
		return ""
	}
	return stripFences(p.buf.String()[p.markerAt:])
}

// stripFences removes a trailing markdown code fence (and a stray leading one)
// that models habitually wrap documents in.
func stripFences(s string) string {
	s = strings.TrimSuffix(strings.TrimRight(s, " \t\n"), "```")
	s = strings.TrimRight(s, " \t\n")
	if rest, ok := strings.CutPrefix(s, "```html"); ok {
		s = strings.TrimLeft(rest, "\n")
	} else if rest, ok := strings.CutPrefix(s, "```"); ok {
		s = strings.TrimLeft(rest, "\n")
	}
	return s
}
