package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"scribe/session"
	"scribe/stt"
)

const (
	// One packet carries 20ms of audio; cap a speaking span at 60 seconds.
	maxSpanPackets = 60 * 1000 / 20

	// Completed spans waiting on a participant's transcription worker.
	spanQueueSize = 8

	transcribeTimeout = 30 * time.Second
)

// Packet is one Opus frame received from the voice connection.
type Packet struct {
	Sequence  uint16
	Timestamp uint32
	SSRC      uint32
	Opus      []byte
}

type utterance struct {
	participant session.Participant
	packets     []Packet
}

type worker struct {
	participant session.Participant
	spans       chan *utterance
}

// Pipeline turns speaking spans into transcript fragments. Each participant
// gets a capture buffer per span and a single worker goroutine that
// transcribes their completed spans in order, so a participant's fragments
// apply in span-end order while different participants proceed in parallel.
type Pipeline struct {
	sess        *session.Session
	transcriber stt.Transcriber
	log         *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	spans   map[string][]Packet // participantID -> packets of the open span
	workers map[string]*worker  // participantID
	closed  bool
}

func NewPipeline(
	sess *session.Session,
	transcriber stt.Transcriber,
	logger *log.Logger,
) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		sess:        sess,
		transcriber: transcriber,
		log:         logger,
		ctx:         ctx,
		cancel:      cancel,
		spans:       make(map[string][]Packet),
		workers:     make(map[string]*worker),
	}
}

// BeginSpan opens a capture buffer for the participant. A begin while a
// span is already open is ignored; the open span keeps accumulating.
func (p *Pipeline) BeginSpan(participant session.Participant) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	if _, open := p.spans[participant.ID]; open {
		return
	}
	p.spans[participant.ID] = make([]Packet, 0, 64)
	p.log.Debug("listening", "participant", participant.Tag)
}

// PushAudio appends a packet to the participant's open span. Packets for
// participants without an open span are dropped, as is anything past the
// span size cap.
func (p *Pipeline) PushAudio(participantID string, pkt Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	packets, open := p.spans[participantID]
	if !open || p.closed {
		return
	}
	if len(packets) >= maxSpanPackets {
		p.log.Warn("span buffer full, dropping packet", "participant", participantID)
		return
	}
	p.spans[participantID] = append(packets, pkt)
}

// EndSpan closes the participant's open span and queues it for
// transcription. The span is consumed exactly once.
func (p *Pipeline) EndSpan(participant session.Participant) {
	p.mu.Lock()

	packets, open := p.spans[participant.ID]
	if !open || p.closed {
		p.mu.Unlock()
		return
	}
	delete(p.spans, participant.ID)

	if len(packets) == 0 {
		p.mu.Unlock()
		return
	}

	w := p.workers[participant.ID]
	if w == nil {
		w = &worker{
			participant: participant,
			spans:       make(chan *utterance, spanQueueSize),
		}
		p.workers[participant.ID] = w
		p.wg.Add(1)
		go p.runWorker(w)
	}

	// Queued under the lock so Close cannot shut the channel between the
	// closed check and the send.
	select {
	case w.spans <- &utterance{participant: participant, packets: packets}:
	default:
		p.log.Warn(
			"span queue full, dropping utterance",
			"participant", participant.Tag,
		)
	}
	p.mu.Unlock()
}

func (p *Pipeline) runWorker(w *worker) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case u, ok := <-w.spans:
			if !ok {
				return
			}
			p.transcribeSpan(u)
		}
	}
}

func (p *Pipeline) transcribeSpan(u *utterance) {
	blob, err := encodeUtterance(u.packets)
	if err != nil {
		p.log.Error(
			"failed to encode utterance",
			"participant", u.participant.Tag,
			"error", err.Error(),
		)
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, transcribeTimeout)
	defer cancel()

	text, err := p.transcriber.Transcribe(ctx, blob)
	if err != nil {
		// Transcription failures drop the utterance; they never abort the
		// pipeline or the session.
		p.log.Error(
			"transcription failed",
			"participant", u.participant.Tag,
			"error", err.Error(),
		)
		return
	}
	if text == "" {
		return
	}

	p.sess.UpsertFragment(u.participant, text)
}

// Close stops accepting audio, cancels in-flight transcriptions, and waits
// for all workers to exit. After Close returns the pipeline will never
// touch the session again; callers tear the session down afterwards.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.spans = make(map[string][]Packet)
	for _, w := range p.workers {
		close(w.spans)
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
