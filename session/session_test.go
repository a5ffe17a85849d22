package session

import (
	"testing"
)

const botID = "bot-1"

func newTestSession(participants ...Participant) *Session {
	return New("guild-1", botID, participants)
}

func p(id, tag string) Participant {
	return Participant{ID: id, Tag: tag}
}

func TestRenderText(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*Session)
		expected string
	}{
		{
			name:     "empty session",
			setup:    func(s *Session) {},
			expected: "",
		},
		{
			name: "participant without fragment still appears",
			setup: func(s *Session) {
				if err := s.AddParticipant(p("u1", "alice")); err != nil {
					t.Fatal(err)
				}
			},
			expected: "alice\n\n\n",
		},
		{
			name: "fragments in registration order",
			setup: func(s *Session) {
				s.UpsertFragment(p("u1", "alice"), "hello")
				s.UpsertFragment(p("u2", "bob"), "hi there")
			},
			expected: "alice\nhello\n\nbob\nhi there\n\n",
		},
		{
			name: "bot identity is excluded",
			setup: func(s *Session) {
				s.UpsertFragment(p(botID, "scribe"), "beep")
				s.UpsertFragment(p("u1", "alice"), "hello")
			},
			expected: "alice\nhello\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession()
			tt.setup(s)
			if got := s.RenderText(); got != tt.expected {
				t.Errorf("RenderText() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestOrderingIndependentOfUpdateOrder(t *testing.T) {
	s := newTestSession(p("u1", "alice"), p("u2", "bob"))

	// Updates arrive in the opposite order of registration.
	s.UpsertFragment(p("u2", "bob"), "second speaker")
	s.UpsertFragment(p("u1", "alice"), "first speaker")
	s.UpsertFragment(p("u2", "bob"), "updated")

	expected := "alice\nfirst speaker\n\nbob\nupdated\n\n"
	if got := s.RenderText(); got != expected {
		t.Errorf("RenderText() = %q, want %q", got, expected)
	}
}

func TestUpsertIdempotence(t *testing.T) {
	s := newTestSession()

	s.UpsertFragment(p("u1", "alice"), "hello")
	once := s.RenderText()

	s.UpsertFragment(p("u1", "alice"), "hello")
	twice := s.RenderText()

	if once != twice {
		t.Errorf("repeated upsert changed output: %q vs %q", once, twice)
	}
}

func TestAddRemoveParticipant(t *testing.T) {
	s := newTestSession(p("u1", "alice"))

	if err := s.AddParticipant(p("u1", "alice")); err != ErrDuplicateParticipant {
		t.Errorf("AddParticipant(duplicate) = %v, want ErrDuplicateParticipant", err)
	}

	if err := s.RemoveParticipant(p("u2", "bob")); err != ErrParticipantNotFound {
		t.Errorf("RemoveParticipant(absent) = %v, want ErrParticipantNotFound", err)
	}

	if err := s.RemoveParticipant(p("u1", "alice")); err != nil {
		t.Errorf("RemoveParticipant(present) = %v, want nil", err)
	}
	if got := s.RenderText(); got != "" {
		t.Errorf("RenderText() after removal = %q, want empty", got)
	}
}

func TestOnChangeFiresOnUpsert(t *testing.T) {
	s := newTestSession()

	calls := 0
	s.SetOnChange(func() { calls++ })

	s.UpsertFragment(p("u1", "alice"), "one")
	s.UpsertFragment(p("u1", "alice"), "two")

	if calls != 2 {
		t.Errorf("onChange fired %d times, want 2", calls)
	}
}

func TestEntriesMatchRenderOrder(t *testing.T) {
	s := newTestSession(p(botID, "scribe"))
	s.UpsertFragment(p("u2", "bob"), "later registration first update")
	s.UpsertFragment(p("u1", "alice"), "hello")

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
	if entries[0].User.ID != "u2" || entries[0].Transcript != "later registration first update" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].User.ID != "u1" || entries[1].User.Tag != "alice" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

type fakeConn struct {
	id     string
	events []string
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Emit(event string, _ any) error {
	f.events = append(f.events, event)
	return nil
}

func TestSubscribeNewestWins(t *testing.T) {
	s := newTestSession()

	first := &Subscriber{Conn: &fakeConn{id: "c1"}, Credential: "k1"}
	second := &Subscriber{Conn: &fakeConn{id: "c2"}, Credential: "k2"}

	if replaced := s.Subscribe(first); replaced != nil {
		t.Errorf("first Subscribe replaced %v, want nil", replaced)
	}
	if replaced := s.Subscribe(second); replaced != first {
		t.Errorf("second Subscribe replaced %v, want first subscriber", replaced)
	}
	if sub := s.Subscriber(); sub != second {
		t.Errorf("Subscriber() = %v, want second", sub)
	}
}

func TestUnsubscribeMatchesConnID(t *testing.T) {
	s := newTestSession()
	s.Subscribe(&Subscriber{Conn: &fakeConn{id: "c1"}, Credential: "k"})

	s.Unsubscribe("other")
	if s.Subscriber() == nil {
		t.Fatal("Unsubscribe with wrong conn id detached the subscriber")
	}

	s.Unsubscribe("c1")
	if s.Subscriber() != nil {
		t.Fatal("Unsubscribe with matching conn id did not detach")
	}
}

func TestUpsertAfterCloseIsNoop(t *testing.T) {
	s := newTestSession()
	s.UpsertFragment(p("u1", "alice"), "hello")

	s.Close()
	s.UpsertFragment(p("u1", "alice"), "late")
	s.UpsertFragment(p("u2", "bob"), "later still")

	if got := s.RenderText(); got != "alice\nhello\n\n" {
		t.Errorf("RenderText() after close = %q", got)
	}
	if s.Subscriber() != nil {
		t.Error("Close did not detach subscriber")
	}
}
