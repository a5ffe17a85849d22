package session

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrDuplicateParticipant = errors.New("participant already present in session")
	ErrParticipantNotFound  = errors.New("participant not present in session")
)

// Participant is one voice-channel member being transcribed.
type Participant struct {
	ID  string
	Tag string
}

// Entry is the structured projection of one participant's transcript,
// emitted to subscribers as part of a transcript:update payload.
type Entry struct {
	User struct {
		ID  string `json:"id"`
		Tag string `json:"tag"`
	} `json:"user"`
	Transcript string `json:"transcript"`
}

// Emitter is the transport-side half of a subscriber connection.
type Emitter interface {
	ID() string
	Emit(event string, payload any) error
}

// Subscriber binds a live connection to the credential it authenticated
// with. A session is either unsubscribed (nil) or holds exactly one of
// these; there is no half-bound state.
type Subscriber struct {
	Conn       Emitter
	Credential string
}

// Session is the live transcript state for one tenant's voice call:
// participants in registration order, the latest transcript fragment for
// each, and at most one subscriber. Mutations fire the registered onChange
// hook synchronously.
type Session struct {
	TenantID string

	mu           sync.Mutex
	botUserID    string
	participants []Participant
	fragments    map[string]string
	sub          *Subscriber
	onChange     func()
	closed       bool
}

func New(tenantID, botUserID string, participants []Participant) *Session {
	s := &Session{
		TenantID:  tenantID,
		botUserID: botUserID,
		fragments: make(map[string]string),
	}
	for _, p := range participants {
		// Initial roster comes from the voice channel member list and may
		// not contain duplicates.
		s.participants = append(s.participants, p)
		s.fragments[p.ID] = ""
	}
	return s
}

// SetOnChange registers the single change hook. The hook runs after every
// mutation, outside the session lock.
func (s *Session) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Session) AddParticipant(p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(p.ID) != -1 {
		return ErrDuplicateParticipant
	}
	s.participants = append(s.participants, p)
	s.fragments[p.ID] = ""
	return nil
}

func (s *Session) RemoveParticipant(p Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(p.ID)
	if idx == -1 {
		return ErrParticipantNotFound
	}
	s.participants = append(s.participants[:idx], s.participants[idx+1:]...)
	delete(s.fragments, p.ID)
	return nil
}

// UpsertFragment sets the participant's current fragment, registering the
// participant first if the session has not seen them yet. It never fails;
// after teardown has started it is a no-op.
func (s *Session) UpsertFragment(p Participant, text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.indexOf(p.ID) == -1 {
		s.participants = append(s.participants, p)
	}
	s.fragments[p.ID] = text
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// RenderText projects the transcript deterministically: every participant
// except the bot, in registration order, as "tag\nfragment\n\n".
// Participants who have not spoken yet appear with an empty body.
func (s *Session) RenderText() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, p := range s.participants {
		if p.ID == s.botUserID {
			continue
		}
		b.WriteString(p.Tag)
		b.WriteString("\n")
		b.WriteString(s.fragments[p.ID])
		b.WriteString("\n\n")
	}
	return b.String()
}

// Entries is the structured equivalent of RenderText, in the same order
// and with the same bot exclusion.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.participants))
	for _, p := range s.participants {
		if p.ID == s.botUserID {
			continue
		}
		var e Entry
		e.User.ID = p.ID
		e.User.Tag = p.Tag
		e.Transcript = s.fragments[p.ID]
		entries = append(entries, e)
	}
	return entries
}

// Subscribe binds conn as the session's sole subscriber. The newest
// subscribe always wins; any previously bound subscriber is returned so
// the caller can notify its connection.
func (s *Session) Subscribe(sub *Subscriber) (replaced *Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced = s.sub
	s.sub = sub
	return replaced
}

// Unsubscribe detaches the current subscriber if its connection id matches,
// or unconditionally when connID is empty.
func (s *Session) Unsubscribe(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub == nil {
		return
	}
	if connID == "" || s.sub.Conn.ID() == connID {
		s.sub = nil
	}
}

// Subscriber returns the currently bound subscriber, or nil.
func (s *Session) Subscriber() *Subscriber {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub
}

// Close marks the session torn down, detaching the subscriber and making
// further fragment upserts no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sub = nil
}

func (s *Session) indexOf(participantID string) int {
	for i, p := range s.participants {
		if p.ID == participantID {
			return i
		}
	}
	return -1
}
