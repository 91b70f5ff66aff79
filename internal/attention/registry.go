// Package attention holds the registry of pending human decisions and
// arbitrates their exactly-once resolution.
package attention

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"steward/internal/domain"
	"steward/internal/events"
	"steward/pkg/logger"
)

var (
	// ErrNotFound indicates the attention id is unknown to the registry.
	ErrNotFound = errors.New("attention item not found")

	// ErrAlreadyClaimed indicates a second waiter tried to register on an
	// item that already has one. One item maps to exactly one waiter.
	ErrAlreadyClaimed = errors.New("attention item already claimed")
)

// Recorder durably appends interaction records. Persistence failures are
// logged and never propagate into the resolution path.
type Recorder interface {
	AppendInteraction(rec domain.InteractionRecord) error
}

// entry pairs a pending item with its one-shot waiter channel.
type entry struct {
	item    domain.AttentionItem
	done    chan domain.Outcome
	claimed bool
}

// Registry is the single source of truth for outstanding decisions.
type Registry struct {
	mu       sync.Mutex
	pending  map[string]*entry
	order    []string
	recorder Recorder
	pub      events.Publisher
	log      *zerolog.Logger
}

// NewRegistry creates a registry. recorder may be nil (no audit trail);
// pub may be nil (no resolution broadcasts).
func NewRegistry(recorder Recorder, pub events.Publisher) *Registry {
	return &Registry{
		pending:  make(map[string]*entry),
		recorder: recorder,
		pub:      pub,
		log:      logger.Component("attention"),
	}
}

// Enqueue makes an item visible via ListPending. Enqueueing an id twice
// is a caller-side contract violation; the registry overwrites the
// previous entry. No broadcast is performed here.
func (r *Registry) Enqueue(item domain.AttentionItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pending[item.ID]; !exists {
		r.order = append(r.order, item.ID)
	}
	r.pending[item.ID] = &entry{
		item: item,
		done: make(chan domain.Outcome, 1),
	}

	r.log.Debug().
		Str("attention_id", item.ID).
		Str("run_id", item.RunID).
		Str("kind", string(item.Kind)).
		Msg("Attention item enqueued")
}

// ListPending returns pending items in insertion order.
func (r *Registry) ListPending() []domain.AttentionItem {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := make([]domain.AttentionItem, 0, len(r.pending))
	for _, id := range r.order {
		if e, ok := r.pending[id]; ok {
			items = append(items, e.item)
		}
	}
	return items
}

// Await registers the caller as the single waiter for the item and
// returns the channel Resolve will deliver the outcome on. A second
// Await on the same id fails with ErrAlreadyClaimed.
func (r *Registry) Await(id string) (<-chan domain.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.claimed {
		return nil, ErrAlreadyClaimed
	}
	e.claimed = true
	return e.done, nil
}

// Resolve applies an operator decision to a pending item. It returns
// false with no side effects when the id is unknown (already resolved
// or never existed). For a known id it records the interaction,
// publishes interaction:resolved, wakes the waiter with the
// engine-facing outcome, and drops the item from the pending set,
// all atomically with respect to other registry calls.
func (r *Registry) Resolve(id string, res domain.Resolution) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		return false
	}

	delete(r.pending, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	outcome := buildOutcome(e.item, res)

	rec := domain.InteractionRecord{
		ID:         e.item.ID,
		SessionID:  e.item.RunID,
		Kind:       e.item.Kind,
		ToolName:   e.item.ToolName,
		ToolInput:  e.item.ToolInput,
		Behavior:   outcome.Behavior,
		Message:    outcome.Message,
		ResolvedAt: time.Now(),
	}

	if r.recorder != nil {
		if err := r.recorder.AppendInteraction(rec); err != nil {
			// Best effort: the waiter is woken regardless.
			r.log.Error().Err(err).
				Str("attention_id", id).
				Msg("Failed to record interaction")
		}
	}

	if r.pub != nil {
		r.pub.Publish(events.InteractionResolved{
			SessionID:   e.item.RunID,
			Interaction: rec,
		})
	}

	select {
	case e.done <- outcome:
	default:
	}

	r.log.Info().
		Str("attention_id", id).
		Str("run_id", e.item.RunID).
		Str("behavior", string(outcome.Behavior)).
		Msg("Attention item resolved")

	return true
}

// ClearForRun drops every pending item belonging to runID without
// resolving or recording it. Waiters are not woken; an interrupted
// run's permission wait unblocks through its cancelled context instead.
func (r *Registry) ClearForRun(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []string
	removed := 0
	for _, id := range r.order {
		e, ok := r.pending[id]
		if ok && e.item.RunID == runID {
			delete(r.pending, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	if removed > 0 {
		r.log.Info().
			Str("run_id", runID).
			Int("removed", removed).
			Msg("Cleared pending attention for run")
	}
}

// buildOutcome derives the engine-facing payload from the stored item
// and the operator's resolution. For allow, the input captured at
// enqueue time is echoed back regardless of the resolution call.
func buildOutcome(item domain.AttentionItem, res domain.Resolution) domain.Outcome {
	out := domain.Outcome{
		Behavior:  res.Behavior,
		ToolUseID: item.ToolUseID,
	}

	switch res.Behavior {
	case domain.BehaviorDeny:
		out.Message = res.Message
		if out.Message == "" {
			out.Message = domain.DefaultDenyMessage
		}
	default:
		out.UpdatedInput = item.ToolInput
		out.Message = res.Message
	}

	return out
}
