package render

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"scribe/session"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeSurface struct {
	created  []string
	edits    []string
	deletes  []string
	editErr  error
	createID string
}

func (s *fakeSurface) Create(text string) (string, error) {
	s.created = append(s.created, text)
	if s.createID == "" {
		s.createID = "msg-1"
	}
	return s.createID, nil
}

func (s *fakeSurface) Edit(handle, text string) error {
	if s.editErr != nil {
		return s.editErr
	}
	s.edits = append(s.edits, text)
	return nil
}

func (s *fakeSurface) Delete(handle string) error {
	s.deletes = append(s.deletes, handle)
	return nil
}

func newTestRenderer(t *testing.T) (*Renderer, *fakeSurface, *fakeClock, *session.Session) {
	t.Helper()

	sess := session.New("g1", "bot", nil)
	surface := &fakeSurface{}
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewRenderer(sess, surface, time.Second, log.New(io.Discard)).WithClock(clock)
	sess.SetOnChange(r.Refresh)
	return r, surface, clock, sess
}

func alice() session.Participant {
	return session.Participant{ID: "u1", Tag: "alice"}
}

func TestInitiateCreatesSurfaceOnce(t *testing.T) {
	r, surface, _, _ := newTestRenderer(t)

	r.Initiate()
	r.Initiate()

	if len(surface.created) != 1 {
		t.Errorf("Create called %d times, want 1", len(surface.created))
	}
}

func TestDebounceCoalescesBursts(t *testing.T) {
	r, surface, clock, sess := newTestRenderer(t)
	r.Initiate()

	// A burst of mutations inside the debounce window renders nothing.
	for i, text := range []string{"a", "ab", "abc"} {
		clock.advance(100 * time.Millisecond)
		sess.UpsertFragment(alice(), text)
		if len(surface.edits) != 0 {
			t.Fatalf("edit fired after mutation %d inside the window", i+1)
		}
	}

	// The next qualifying mutation performs exactly one catch-up render
	// reflecting the latest state.
	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "abcd")

	if len(surface.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(surface.edits))
	}
	if surface.edits[0] != "alice\nabcd\n\n" {
		t.Errorf("rendered %q, want latest state", surface.edits[0])
	}
}

func TestRenderAfterIntervalElapsed(t *testing.T) {
	r, surface, clock, sess := newTestRenderer(t)
	r.Initiate()

	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "hello")
	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "hello again")

	if len(surface.edits) != 2 {
		t.Errorf("edits = %d, want 2", len(surface.edits))
	}
}

func TestEditFailureIsSwallowed(t *testing.T) {
	r, surface, clock, sess := newTestRenderer(t)
	r.Initiate()

	surface.editErr = errors.New("message deleted")
	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "hello")

	// The failure must not propagate; a later mutation retries.
	surface.editErr = nil
	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "recovered")

	if len(surface.edits) != 1 || surface.edits[0] != "alice\nrecovered\n\n" {
		t.Errorf("edits = %v", surface.edits)
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	r, surface, clock, sess := newTestRenderer(t)
	r.Initiate()

	r.Destroy()
	r.Destroy()

	if len(surface.deletes) != 1 {
		t.Errorf("Delete called %d times, want 1", len(surface.deletes))
	}

	// Edits after destroy are no-ops, not errors.
	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "too late")
	if len(surface.edits) != 0 {
		t.Errorf("edit fired after destroy")
	}
}

func TestRefreshBeforeInitiateIsNoop(t *testing.T) {
	r, surface, clock, sess := newTestRenderer(t)

	clock.advance(time.Second)
	sess.UpsertFragment(alice(), "hello")

	if len(surface.edits) != 0 {
		t.Errorf("edit fired before Initiate")
	}
	_ = r
}
