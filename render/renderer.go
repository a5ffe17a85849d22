package render

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"scribe/session"
)

const DefaultInterval = 1000 * time.Millisecond

// Surface is the external message the transcript is projected onto.
// Create returns a handle used for subsequent edits.
type Surface interface {
	Create(text string) (handle string, err error)
	Edit(handle, text string) error
	Delete(handle string) error
}

// Clock exists so the debounce is testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Renderer keeps one rendered message in sync with a session's transcript.
// Refreshes are debounced: a mutation renders only when the configured
// interval has elapsed since the last render, and skipped mutations are
// caught up by the next qualifying one. Surface failures are logged and
// swallowed; they never reach the ingestion path.
type Renderer struct {
	sess     *session.Session
	surface  Surface
	clock    Clock
	interval time.Duration
	log      *log.Logger

	mu         sync.Mutex
	handle     string
	lastRender time.Time
	destroyed  bool
}

func NewRenderer(
	sess *session.Session,
	surface Surface,
	interval time.Duration,
	logger *log.Logger,
) *Renderer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Renderer{
		sess:     sess,
		surface:  surface,
		clock:    systemClock{},
		interval: interval,
		log:      logger,
	}
}

// WithClock swaps the time source, for tests.
func (r *Renderer) WithClock(clock Clock) *Renderer {
	r.clock = clock
	return r
}

// Initiate creates the rendered message once and stores its handle.
func (r *Renderer) Initiate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle != "" || r.destroyed {
		return
	}

	handle, err := r.surface.Create(r.sess.RenderText())
	if err != nil {
		r.log.Error("failed to create render surface", "error", err.Error())
		return
	}
	r.handle = handle
	r.lastRender = r.clock.Now()
}

// Refresh is the session's change hook. It edits the surface when the
// debounce interval has elapsed; otherwise the mutation is coalesced into
// a later render.
func (r *Renderer) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handle == "" || r.destroyed {
		return
	}

	now := r.clock.Now()
	if now.Sub(r.lastRender) < r.interval {
		return
	}

	if err := r.surface.Edit(r.handle, r.sess.RenderText()); err != nil {
		r.log.Error("failed to refresh render surface", "error", err.Error())
		return
	}
	r.lastRender = now
}

// Destroy deletes the rendered message. Further refreshes and repeated
// destroys are no-ops.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return
	}
	r.destroyed = true

	if r.handle == "" {
		return
	}
	if err := r.surface.Delete(r.handle); err != nil {
		r.log.Error("failed to delete render surface", "error", err.Error())
	}
	r.handle = ""
}
