package socket

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"scribe/auth"
	"scribe/session"
)

// Broadcaster fans transcript updates out to a session's subscriber. The
// subscriber's credential is re-verified before every emission, so a key
// that is rotated or revoked mid-session cuts the feed off at the next
// mutation.
type Broadcaster struct {
	gate *auth.Gate
	log  *log.Logger
}

func NewBroadcaster(gate *auth.Gate, logger *log.Logger) *Broadcaster {
	return &Broadcaster{gate: gate, log: logger}
}

// Emit is the session's change hook for the broadcast side. With no
// subscriber bound it is a no-op.
func (b *Broadcaster) Emit(ctx context.Context, sess *session.Session) {
	sub := sess.Subscriber()
	if sub == nil {
		return
	}

	if err := b.gate.Verify(ctx, sess.TenantID, sub.Credential); err != nil {
		b.log.Info(
			"subscriber no longer authorized, detaching",
			"tenant", sess.TenantID,
			"conn", sub.Conn.ID(),
			"reason", err.Error(),
		)
		// One final error frame, then nothing further on this connection.
		if emitErr := sub.Conn.Emit(EventError, errInvalidKey); emitErr != nil {
			b.log.Debug("failed to send final error", "error", emitErr.Error())
		}
		sess.Unsubscribe(sub.Conn.ID())
		return
	}

	if err := sub.Conn.Emit(EventUpdate, sess.Entries()); err != nil {
		b.log.Error(
			"failed to emit transcript update",
			"tenant", sess.TenantID,
			"conn", sub.Conn.ID(),
			"error", err.Error(),
		)
	}
}

// Subscribe authorizes the connection and binds it as the session's sole
// subscriber, returning the typed error payload to emit on failure.
func (b *Broadcaster) Subscribe(
	ctx context.Context,
	registry *session.Registry,
	conn session.Emitter,
	serverID, apiKey string,
) *SocketError {
	if err := b.gate.Verify(ctx, serverID, apiKey); err != nil {
		switch {
		case errors.Is(err, auth.ErrTenantNotFound):
			return &errServerNotFound
		case errors.Is(err, auth.ErrAPIDisabled):
			return &errAPIDisabled
		case errors.Is(err, auth.ErrInvalidKey):
			return &errInvalidKey
		default:
			b.log.Error("credential verification failed", "error", err.Error())
			return &errInternal
		}
	}

	sess := registry.Find(serverID)
	if sess == nil {
		return &errNoSession
	}

	replaced := sess.Subscribe(&session.Subscriber{
		Conn:       conn,
		Credential: apiKey,
	})
	if replaced != nil && replaced.Conn.ID() != conn.ID() {
		b.log.Info(
			"subscriber replaced",
			"tenant", serverID,
			"old", replaced.Conn.ID(),
			"new", conn.ID(),
		)
	}

	b.log.Info("subscribed", "tenant", serverID, "conn", conn.ID())
	return nil
}
