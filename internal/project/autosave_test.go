package project

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/locaith-ai/studio/internal/log"
)

// fakeWriter records store writes in memory.
type fakeWriter struct {
	mu      sync.Mutex
	inserts []Project
	updates []Project
	failing bool
}

func (f *fakeWriter) Insert(_ context.Context, p *Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unavailable")
	}
	p.ID = uuid.New()
	if p.Slug == "" {
		p.Slug = MintSlug(p.Name, time.Now())
	}
	f.inserts = append(f.inserts, *p)
	return nil
}

func (f *fakeWriter) Update(_ context.Context, p *Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("store unavailable")
	}
	f.updates = append(f.updates, *p)
	return nil
}

func (f *fakeWriter) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts), len(f.updates)
}

// staticIdentity always resolves to the same user.
type staticIdentity struct{ user string }

func (s staticIdentity) CurrentUser(context.Context) (string, bool) {
	return s.user, s.user != ""
}

func snapshot(artifact string) Snapshot {
	return Snapshot{
		Name:     "Landing Page",
		Artifact: artifact,
		Messages: []*Message{NewUserMessage("build a landing page")},
	}
}

func TestAutosaver_CoalescesBurst(t *testing.T) {
	store := &fakeWriter{}
	saver := NewAutosaver(store, staticIdentity{user: "u-1"}, 40*time.Millisecond, log.NewNop())
	defer saver.Close(context.Background())

	// Burst of queues inside one idle window must collapse to one write
	// carrying the last snapshot.
	for i := range 5 {
		saver.Queue(snapshot(string(rune('a' + i))))
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(120 * time.Millisecond)

	inserts, updates := store.counts()
	if inserts != 1 || updates != 0 {
		t.Fatalf("got %d inserts, %d updates; want exactly 1 insert", inserts, updates)
	}

	store.mu.Lock()
	got := store.inserts[0].Artifact
	store.mu.Unlock()
	if got != "e" {
		t.Errorf("written artifact = %q, want last snapshot %q", got, "e")
	}
}

func TestAutosaver_SpacedWritesEachPersist(t *testing.T) {
	store := &fakeWriter{}
	saver := NewAutosaver(store, staticIdentity{user: "u-1"}, 20*time.Millisecond, log.NewNop())
	defer saver.Close(context.Background())

	for i := range 3 {
		saver.Queue(snapshot(string(rune('a' + i))))
		time.Sleep(80 * time.Millisecond)
	}

	inserts, updates := store.counts()
	if inserts+updates != 3 {
		t.Fatalf("got %d writes, want 3", inserts+updates)
	}
	// First write inserts and mints identity; the rest update in place.
	if inserts != 1 || updates != 2 {
		t.Errorf("got %d inserts, %d updates; want 1 insert then 2 updates", inserts, updates)
	}

	store.mu.Lock()
	slug := store.updates[1].Slug
	id := store.updates[1].ID
	first := store.inserts[0]
	store.mu.Unlock()
	if slug != first.Slug || id != first.ID {
		t.Errorf("updates must preserve minted identity: got (%s, %s), want (%s, %s)",
			id, slug, first.ID, first.Slug)
	}
}

func TestAutosaver_NoIdentitySkipsSilently(t *testing.T) {
	store := &fakeWriter{}
	saver := NewAutosaver(store, staticIdentity{}, 20*time.Millisecond, log.NewNop())
	defer saver.Close(context.Background())

	saver.Queue(snapshot("a"))
	time.Sleep(80 * time.Millisecond)

	inserts, updates := store.counts()
	if inserts != 0 || updates != 0 {
		t.Fatalf("got %d inserts, %d updates; want none without a principal", inserts, updates)
	}
}

func TestAutosaver_WriteFailureSwallowedAndSelfHeals(t *testing.T) {
	store := &fakeWriter{failing: true}
	saver := NewAutosaver(store, staticIdentity{user: "u-1"}, 20*time.Millisecond, log.NewNop())
	defer saver.Close(context.Background())

	saver.Queue(snapshot("a"))
	time.Sleep(80 * time.Millisecond)

	store.mu.Lock()
	store.failing = false
	store.mu.Unlock()

	saver.Queue(snapshot("b"))
	time.Sleep(80 * time.Millisecond)

	inserts, _ := store.counts()
	if inserts != 1 {
		t.Fatalf("got %d inserts, want 1 after recovery", inserts)
	}
	store.mu.Lock()
	got := store.inserts[0].Artifact
	store.mu.Unlock()
	if got != "b" {
		t.Errorf("recovered write artifact = %q, want latest state %q", got, "b")
	}
}

func TestAutosaver_FlushWritesImmediately(t *testing.T) {
	store := &fakeWriter{}
	saver := NewAutosaver(store, staticIdentity{user: "u-1"}, time.Hour, log.NewNop())
	defer saver.Close(context.Background())

	saver.Queue(snapshot("a"))
	saver.Flush(context.Background())

	inserts, _ := store.counts()
	if inserts != 1 {
		t.Fatalf("got %d inserts, want 1 after Flush", inserts)
	}
}

func TestAutosaver_ResumePreservesSlug(t *testing.T) {
	store := &fakeWriter{}
	saver := NewAutosaver(store, staticIdentity{user: "u-1"}, time.Hour, log.NewNop())
	defer saver.Close(context.Background())

	existing := &Project{
		ID:   uuid.New(),
		Name: "Landing Page",
		Slug: "landing-page-20260101000000",
	}
	saver.Resume(existing)

	saver.Queue(snapshot("v2"))
	saver.Flush(context.Background())

	inserts, updates := store.counts()
	if inserts != 0 || updates != 1 {
		t.Fatalf("got %d inserts, %d updates; want a single update", inserts, updates)
	}
	store.mu.Lock()
	got := store.updates[0]
	store.mu.Unlock()
	if got.Slug != existing.Slug {
		t.Errorf("update slug = %q, want preserved %q", got.Slug, existing.Slug)
	}
}
