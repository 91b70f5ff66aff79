package run

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/attention"
	"steward/internal/domain"
	"steward/internal/engine"
	"steward/internal/events"
)

// fakeStream is a scripted engine stream.
type fakeStream struct {
	events chan engine.Message

	mu  sync.Mutex
	err error
}

func (s *fakeStream) Events() <-chan engine.Message { return s.events }

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeStream) emit(raw string) {
	var peek struct {
		SessionID string `json:"session_id"`
		Type      string `json:"type"`
	}
	_ = json.Unmarshal([]byte(raw), &peek)
	s.events <- engine.Message{Raw: json.RawMessage(raw), SessionID: peek.SessionID, Type: peek.Type}
}

// fakeEngine runs a script against the stream it hands out.
type fakeEngine struct {
	script func(ctx context.Context, opts engine.Options, s *fakeStream)
}

func (f *fakeEngine) Run(ctx context.Context, opts engine.Options) (engine.Stream, error) {
	s := &fakeStream{events: make(chan engine.Message)}
	go func() {
		defer close(s.events)
		f.script(ctx, opts, s)
	}()
	return s, nil
}

// capturePublisher records events in publish order.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *capturePublisher) all() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *capturePublisher) byType(t string) []events.Event {
	var out []events.Event
	for _, ev := range p.all() {
		if ev.EventType() == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestCoordinator(eng engine.Engine, pub *capturePublisher) (*Coordinator, *attention.Registry, *Table) {
	registry := attention.NewRegistry(nil, pub)
	table := NewTable()
	c := NewCoordinator(eng, registry, pub, table, nil)
	c.summaryDelay = 0
	return c, registry, table
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinator_IdentitySwap(t *testing.T) {
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		s.emit(`{"type":"queued"}`)
		s.emit(`{"type":"system","subtype":"init","session_id":"real-1"}`)
		s.emit(`{"type":"assistant","session_id":"real-1"}`)
	}}

	pub := &capturePublisher{}
	c, _, table := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "hello", "/tmp/w", "", "")

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 1 })

	// Messages before the swap carry the temporary id, the swap-trigger
	// and everything after carry the real id.
	msgs := pub.byType("session:message")
	require.Len(t, msgs, 3)
	assert.Equal(t, "pending_1", msgs[0].(events.SessionMessage).SessionID)
	assert.Equal(t, "real-1", msgs[1].(events.SessionMessage).SessionID)
	assert.Equal(t, "real-1", msgs[2].(events.SessionMessage).SessionID)

	created := pub.byType("session:created")
	require.Len(t, created, 1)
	ev := created[0].(events.SessionCreated)
	assert.Equal(t, "real-1", ev.Session.ID)
	assert.Equal(t, "pending_1", ev.TempID)
	assert.Equal(t, "/tmp/w", ev.Session.Workdir)
	assert.Equal(t, "New session", ev.Session.Title)

	// session:created precedes the message that triggered the swap.
	var createdIdx, firstRealMsgIdx int
	for i, e := range pub.all() {
		switch m := e.(type) {
		case events.SessionCreated:
			createdIdx = i
		case events.SessionMessage:
			if m.SessionID == "real-1" && firstRealMsgIdx == 0 {
				firstRealMsgIdx = i
			}
		}
	}
	assert.Less(t, createdIdx, firstRealMsgIdx)

	ended := pub.byType("session:ended")[0].(events.SessionEnded)
	assert.Equal(t, "real-1", ended.SessionID)
	assert.Equal(t, domain.ReasonCompleted, ended.Reason)

	// Both ids are deregistered.
	waitFor(t, func() bool { return table.Len() == 0 })
}

func TestCoordinator_CompletionAttentionItem(t *testing.T) {
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		s.emit(`{"type":"system","session_id":"real-1"}`)
	}}

	pub := &capturePublisher{}
	c, registry, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "hello", "/tmp/w", "", "")

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 1 })

	requested := pub.byType("attention:requested")
	require.Len(t, requested, 1)
	item := requested[0].(events.AttentionRequested).Attention
	assert.Equal(t, domain.KindCompletion, item.Kind)
	assert.Equal(t, "real-1", item.RunID)

	// The item stays pending until acknowledged.
	require.Len(t, registry.ListPending(), 1)
}

func TestCoordinator_InterruptBeforeSwap(t *testing.T) {
	started := make(chan struct{})
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		close(started)
		<-ctx.Done()
		s.setErr(context.Canceled)
	}}

	pub := &capturePublisher{}
	c, _, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "hello", "/tmp/w", "", "")
	<-started

	require.True(t, c.Interrupt("pending_1"))

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 1 })

	ended := pub.byType("session:ended")[0].(events.SessionEnded)
	assert.Equal(t, "pending_1", ended.SessionID)
	assert.Equal(t, domain.ReasonInterrupted, ended.Reason)

	// Interrupts produce no attention item.
	assert.Empty(t, pub.byType("attention:requested"))
}

func TestCoordinator_InterruptByOldIDAfterSwap(t *testing.T) {
	swapped := make(chan struct{})
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		s.emit(`{"type":"system","session_id":"real-1"}`)
		close(swapped)
		<-ctx.Done()
		s.setErr(context.Canceled)
	}}

	pub := &capturePublisher{}
	c, _, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "hello", "/tmp/w", "", "")
	<-swapped
	waitFor(t, func() bool { return len(pub.byType("session:created")) == 1 })

	// The temporary id no longer names the run.
	assert.False(t, c.Interrupt("pending_1"))
	require.True(t, c.Interrupt("real-1"))

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 1 })
	assert.Equal(t, domain.ReasonInterrupted, pub.byType("session:ended")[0].(events.SessionEnded).Reason)
}

func TestCoordinator_ErrorTerminal(t *testing.T) {
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		s.emit(`{"type":"system","session_id":"real-1"}`)
		s.setErr(fmt.Errorf("agent exited with code 1"))
	}}

	pub := &capturePublisher{}
	c, _, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "hello", "/tmp/w", "", "")

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 1 })

	ended := pub.byType("session:ended")[0].(events.SessionEnded)
	assert.Equal(t, domain.ReasonErrored, ended.Reason)

	requested := pub.byType("attention:requested")
	require.Len(t, requested, 1)
	item := requested[0].(events.AttentionRequested).Attention
	assert.Equal(t, domain.KindError, item.Kind)
	assert.Equal(t, "agent exited with code 1", item.Message)
}

func TestCoordinator_PermissionRoundTrip(t *testing.T) {
	input := json.RawMessage(`{"file":"a.ts"}`)
	outcomeCh := make(chan domain.Outcome, 1)

	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		s.emit(`{"type":"system","session_id":"real-1"}`)
		outcome, err := opts.CanUseTool(ctx, "Edit", input, engine.CallOptions{ToolUseID: "tu-1"})
		if err != nil {
			return
		}
		outcomeCh <- outcome
	}}

	pub := &capturePublisher{}
	c, registry, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "edit it", "/tmp/w", "", "")

	waitFor(t, func() bool { return len(registry.ListPending()) == 1 })

	pending := registry.ListPending()[0]
	assert.Equal(t, domain.KindPermission, pending.Kind)
	assert.Equal(t, "Edit", pending.ToolName)
	assert.Equal(t, "real-1", pending.RunID)
	assert.Equal(t, "tu-1", pending.ToolUseID)

	require.True(t, registry.Resolve(pending.ID, domain.Resolution{Behavior: domain.BehaviorAllow}))

	outcome := <-outcomeCh
	assert.Equal(t, domain.BehaviorAllow, outcome.Behavior)
	assert.Equal(t, "tu-1", outcome.ToolUseID)
	assert.JSONEq(t, string(input), string(outcome.UpdatedInput))

	waitFor(t, func() bool { return len(pub.byType("attention:resolved")) == 1 })
	resolved := pub.byType("attention:resolved")[0].(events.AttentionResolved)
	assert.Equal(t, pending.ID, resolved.AttentionID)
}

func TestCoordinator_InterruptUnblocksPermissionWait(t *testing.T) {
	errCh := make(chan error, 1)
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		s.emit(`{"type":"system","session_id":"real-1"}`)
		_, err := opts.CanUseTool(ctx, "Bash", json.RawMessage(`{}`), engine.CallOptions{ToolUseID: "tu-1"})
		errCh <- err
		s.setErr(context.Canceled)
	}}

	pub := &capturePublisher{}
	c, registry, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_1", "run it", "/tmp/w", "", "")

	waitFor(t, func() bool { return len(registry.ListPending()) == 1 })

	require.True(t, c.Interrupt("real-1"))

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	// The interrupt swept the pending item.
	assert.Empty(t, registry.ListPending())

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 1 })
	assert.Equal(t, domain.ReasonInterrupted, pub.byType("session:ended")[0].(events.SessionEnded).Reason)
}

func TestCoordinator_ConcurrentRunsIsolated(t *testing.T) {
	eng := &fakeEngine{script: func(ctx context.Context, opts engine.Options, s *fakeStream) {
		// Each run derives its session id from the prompt.
		s.emit(fmt.Sprintf(`{"type":"system","session_id":"real-%s"}`, opts.Prompt))
	}}

	pub := &capturePublisher{}
	c, _, _ := newTestCoordinator(eng, pub)

	c.Launch("pending_a", "a", "/tmp/w", "", "")
	c.Launch("pending_b", "b", "/tmp/w", "", "")

	waitFor(t, func() bool { return len(pub.byType("session:ended")) == 2 })

	created := pub.byType("session:created")
	require.Len(t, created, 2)

	byTemp := map[string]string{}
	for _, ev := range created {
		sc := ev.(events.SessionCreated)
		byTemp[sc.TempID] = sc.Session.ID
	}
	assert.Equal(t, "real-a", byTemp["pending_a"])
	assert.Equal(t, "real-b", byTemp["pending_b"])
}

func TestNewPendingID(t *testing.T) {
	a := NewPendingID()
	b := NewPendingID()
	assert.Contains(t, a, "pending_")
	assert.NotEqual(t, a, b)
}
