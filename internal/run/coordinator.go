package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"steward/internal/attention"
	"steward/internal/domain"
	"steward/internal/engine"
	"steward/internal/events"
	"steward/internal/transcript"
	"steward/pkg/logger"
)

// defaultSummaryDelay is how long the coordinator waits before the
// first transcript lookup after learning the real session id. The
// agent writes its transcript asynchronously; the delay narrows (but
// cannot close) the race with that write.
const defaultSummaryDelay = 300 * time.Millisecond

// NewPendingID generates a temporary run identifier used until the
// engine assigns the real session id.
func NewPendingID() string {
	return fmt.Sprintf("pending_%d", time.Now().UnixNano())
}

// Coordinator drives agent runs from launch to terminal broadcast. It
// owns identity correlation and cancellation; permission decisions are
// delegated to the attention registry.
type Coordinator struct {
	engine      engine.Engine
	registry    *attention.Registry
	pub         events.Publisher
	table       *Table
	transcripts *transcript.Store
	log         *zerolog.Logger

	// summaryDelay is overridable in tests.
	summaryDelay time.Duration
}

// NewCoordinator wires a coordinator. transcripts may be nil; session
// summaries then always use placeholder fields.
func NewCoordinator(eng engine.Engine, reg *attention.Registry, pub events.Publisher, table *Table, transcripts *transcript.Store) *Coordinator {
	return &Coordinator{
		engine:       eng,
		registry:     reg,
		pub:          pub,
		table:        table,
		transcripts:  transcripts,
		log:          logger.Component("run"),
		summaryDelay: defaultSummaryDelay,
	}
}

// effectiveID tracks which identifier currently names a run. It changes
// exactly once, at the identity swap.
type effectiveID struct {
	mu sync.Mutex
	id string
}

func (e *effectiveID) get() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

func (e *effectiveID) set(id string) {
	e.mu.Lock()
	e.id = id
	e.mu.Unlock()
}

// Launch starts an agent run asynchronously. Errors are reported through
// broadcast events, never to the caller.
func (c *Coordinator) Launch(runID, prompt, workdir, resumeID, permissionMode string) {
	go c.run(runID, prompt, workdir, resumeID, permissionMode)
}

// Interrupt cancels the run identified by id (temporary or real).
// Returns false when no such run is live. Pending attention items of
// the run are swept from the registry.
func (c *Coordinator) Interrupt(id string) bool {
	if !c.table.Interrupt(id) {
		return false
	}
	c.registry.ClearForRun(id)
	c.log.Info().Str("run_id", id).Msg("Run interrupted")
	return true
}

func (c *Coordinator) run(runID, prompt, workdir, resumeID, permissionMode string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.table.Register(runID, cancel)

	eff := &effectiveID{id: runID}
	realID := ""
	defer func() {
		c.table.Remove(runID)
		if realID != "" {
			c.table.Remove(realID)
		}
	}()

	c.pub.Publish(events.SessionUpdated{
		SessionID: runID,
		Changes:   map[string]any{"state": "running"},
	})

	opts := engine.Options{
		Prompt:         prompt,
		Workdir:        workdir,
		ResumeID:       resumeID,
		PermissionMode: permissionMode,
		CanUseTool:     c.permissionFunc(eff),
	}

	stream, err := c.engine.Run(ctx, opts)
	if err != nil {
		c.log.Error().Err(err).Str("run_id", runID).Msg("Failed to start run")
		c.reportError(eff.get(), err)
		c.pub.Publish(events.SessionEnded{SessionID: eff.get(), Reason: domain.ReasonErrored})
		return
	}

	for msg := range stream.Events() {
		// The first event carrying an unseen session id triggers the
		// identity swap; that event and everything after it use the
		// real id.
		if realID == "" && msg.SessionID != "" && msg.SessionID != runID {
			realID = msg.SessionID
			c.table.Swap(runID, realID)
			eff.set(realID)
			c.pub.Publish(events.SessionCreated{
				Session: c.sessionSummary(realID, workdir),
				TempID:  runID,
			})
			c.log.Info().
				Str("temp_id", runID).
				Str("session_id", realID).
				Msg("Run identity assigned")
		}

		c.pub.Publish(events.SessionMessage{
			SessionID: eff.get(),
			Message:   msg.Raw,
		})
	}

	id := eff.get()
	switch err := stream.Err(); {
	case err == nil:
		c.report(id, domain.KindCompletion, "Session completed")
		c.pub.Publish(events.SessionEnded{SessionID: id, Reason: domain.ReasonCompleted})
		c.log.Info().Str("run_id", id).Msg("Run completed")

	case errors.Is(err, context.Canceled):
		// Caller-initiated: not a decision the operator needs to review.
		c.pub.Publish(events.SessionEnded{SessionID: id, Reason: domain.ReasonInterrupted})
		c.log.Info().Str("run_id", id).Msg("Run interrupted by caller")

	default:
		c.reportError(id, err)
		c.pub.Publish(events.SessionEnded{SessionID: id, Reason: domain.ReasonErrored})
		c.log.Error().Err(err).Str("run_id", id).Msg("Run failed")
	}
}

// permissionFunc builds the callback the engine invokes before each
// privileged tool use. It enqueues a permission item, announces it, and
// suspends until the operator resolves it or the run is cancelled.
func (c *Coordinator) permissionFunc(eff *effectiveID) engine.PermissionFunc {
	return func(ctx context.Context, toolName string, input json.RawMessage, opts engine.CallOptions) (domain.Outcome, error) {
		item := domain.AttentionItem{
			ID:        uuid.New().String(),
			RunID:     eff.get(),
			Kind:      domain.KindPermission,
			ToolName:  toolName,
			ToolInput: input,
			ToolUseID: opts.ToolUseID,
			CreatedAt: time.Now(),
		}

		c.registry.Enqueue(item)
		c.pub.Publish(events.AttentionRequested{Attention: item})

		ch, err := c.registry.Await(item.ID)
		if err != nil {
			return domain.Outcome{}, err
		}

		select {
		case outcome := <-ch:
			c.pub.Publish(events.AttentionResolved{AttentionID: item.ID})
			return outcome, nil
		case <-ctx.Done():
			// Interrupted while suspended. The item stays pending until
			// swept by ClearForRun.
			return domain.Outcome{}, ctx.Err()
		}
	}
}

// report enqueues and announces a terminal-status attention item.
func (c *Coordinator) report(runID string, kind domain.AttentionKind, message string) {
	item := domain.AttentionItem{
		ID:        uuid.New().String(),
		RunID:     runID,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	}
	c.registry.Enqueue(item)
	c.pub.Publish(events.AttentionRequested{Attention: item})
}

func (c *Coordinator) reportError(runID string, err error) {
	c.report(runID, domain.KindError, err.Error())
}

// sessionSummary reads the session's transcript summary, falling back
// to synthesized placeholder fields when the transcript is not durably
// written yet.
func (c *Coordinator) sessionSummary(sessionID, workdir string) domain.SessionSummary {
	if c.summaryDelay > 0 {
		time.Sleep(c.summaryDelay)
	}

	if c.transcripts != nil {
		if sum, err := c.transcripts.Summary(sessionID); err == nil {
			if sum.Workdir == "" {
				sum.Workdir = workdir
			}
			return sum
		}
	}

	return domain.SessionSummary{
		ID:        sessionID,
		Title:     "New session",
		Workdir:   workdir,
		CreatedAt: time.Now(),
	}
}
