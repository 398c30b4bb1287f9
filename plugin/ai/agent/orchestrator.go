// Package agent runs the persona response orchestrator: classify the
// utterance, then either answer directly or reply by reflex while recalling,
// and follow up with a fused or no-recollection reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/personaflow/internal/observability"
	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/timeout"
)

// Orchestrator is shared by all turns; it holds no per-turn state.
type Orchestrator struct {
	personas   persona.Source
	classifier *Classifier
	composer   *Composer
	retriever  Retriever
	limit      int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetrievalLimit caps how many recollections feed the fused reply.
func WithRetrievalLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithMetrics replaces the process-wide metrics collector.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger used for turns without a request context.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// NewOrchestrator wires the stages together.
func NewOrchestrator(personas persona.Source, gen Generator, retriever Retriever, cfg ai.OrchestratorConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		personas:   personas,
		classifier: NewClassifier(gen),
		composer:   NewComposer(gen, cfg),
		retriever:  retriever,
		limit:      3,
		metrics:    observability.GlobalMetrics(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Respond runs one turn and delivers its events to callback in order:
// either a single direct event, or an immediate event followed by exactly one
// supplementary or no_memory event. The callback is called from the calling
// goroutine only.
//
// Errors: ErrInvalidRequest and persona lookup failures are returned before
// any event. Once classification has run, the only fatal failure is an
// unreachable generation backend at that stage; every later failure degrades
// to an in-character line. A callback error aborts the turn and is returned.
func (o *Orchestrator) Respond(ctx context.Context, req *Request, callback EventCallback) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	p, err := o.personas.GetPersona(ctx, req.PersonaID)
	if err != nil {
		return fmt.Errorf("load persona %s: %w", req.PersonaID, err)
	}
	if callback == nil {
		callback = func(*Event) error { return nil }
	}

	reqCtx := observability.FromContextOrNew(ctx, o.logger, req.PersonaID)
	ctx = observability.WithRequestContext(ctx, reqCtx)
	ctx, cancel := context.WithTimeout(ctx, timeout.TurnTimeout)
	defer cancel()

	t := &turn{
		o:        o,
		reqCtx:   reqCtx,
		persona:  p,
		req:      req,
		callback: callback,
		start:    time.Now(),
	}

	o.metrics.RecordTurn()
	reqCtx.Info("Orchestrator: turn started",
		slog.Int(observability.LogFieldMessageLen, utf8.RuneCountInString(req.Utterance)),
		slog.Int("history_turns", len(req.History)),
	)

	if err := t.run(ctx); err != nil {
		o.metrics.RecordTurnFailure()
		reqCtx.Error("Orchestrator: turn failed", err, slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
		return err
	}
	reqCtx.Info("Orchestrator: turn completed",
		slog.Int("events", t.emitted),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()),
	)
	return nil
}

// Collect runs a turn and returns its events.
func (o *Orchestrator) Collect(ctx context.Context, req *Request) ([]*Event, error) {
	events := make([]*Event, 0, 2)
	err := o.Respond(ctx, req, func(e *Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func validateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.PersonaID) == "" {
		return fmt.Errorf("%w: persona id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Utterance) == "" {
		return fmt.Errorf("%w: utterance is empty", ErrInvalidRequest)
	}
	for i, t := range req.History {
		if t.Role != RoleUser && t.Role != RoleAgent {
			return fmt.Errorf("%w: history[%d] has role %q", ErrInvalidRequest, i, t.Role)
		}
	}
	return nil
}

// turn is the state of one Respond call.
type turn struct {
	o        *Orchestrator
	reqCtx   *observability.RequestContext
	persona  *persona.Persona
	req      *Request
	callback EventCallback
	start    time.Time
	emitted  int
}

func (t *turn) run(ctx context.Context) error {
	needed, err := t.classify(ctx)
	if err != nil {
		return err
	}
	if !needed {
		return t.direct(ctx)
	}
	return t.reflexAndRetrieve(ctx)
}

// classify returns an error only when the backend is unreachable.
func (t *turn) classify(ctx context.Context) (bool, error) {
	log := t.reqCtx.ForStage(StageClassify)
	start := time.Now()
	needed, err := t.o.classifier.Classify(ctx, t.persona, t.req.Utterance)
	t.o.metrics.RecordStage(StageClassify, time.Since(start), err != nil)

	if err != nil {
		if generation.IsUnreachable(err) {
			return false, err
		}
		log.Warn("Orchestrator: classification degraded to direct", slog.String("error", err.Error()))
		return false, nil
	}
	log.Info("Orchestrator: classified", slog.Bool("recollection_needed", needed))
	return needed, nil
}

func (t *turn) direct(ctx context.Context) error {
	start := time.Now()
	text, err := t.o.composer.Direct(ctx, t.persona, t.req.Utterance, t.req.History)
	t.stageDone(StageDirect, start, err)
	return t.emit(&Event{Type: EventTypeDirect, Content: text})
}

func (t *turn) reflexAndRetrieve(ctx context.Context) error {
	// Retrieval starts before the reflex call so both run together.
	task := startRetrieval(ctx, t.o.retriever, t.req.PersonaID, t.req.Utterance, t.o.limit)

	start := time.Now()
	reflex, err := t.o.composer.Reflex(ctx, t.persona, t.req.Utterance, t.req.History)
	t.stageDone(StageReflex, start, err)

	if err := t.emit(&Event{Type: EventTypeImmediate, Content: reflex}); err != nil {
		task.Cancel()
		return err
	}

	memories, err := task.Wait()
	t.o.metrics.RecordStage(StageRetrieve, task.duration, err != nil)
	if err != nil {
		t.reqCtx.ForStage(StageRetrieve).Warn("Orchestrator: retrieval degraded to no_memory",
			slog.String("error", newStageError(StageRetrieve, ErrRetrievalFailure, err).Error()))
		memories = nil
	}

	if len(memories) == 0 {
		start = time.Now()
		text, err := t.o.composer.NoMemory(ctx, t.persona, t.req.Utterance, reflex)
		t.stageDone(StageNoMemory, start, err)
		return t.emit(&Event{Type: EventTypeNoMemory, Content: text})
	}

	start = time.Now()
	text, err := t.o.composer.Supplement(ctx, t.persona, t.req.Utterance, t.req.History, reflex, memories)
	t.stageDone(StageSupplement, start, err)
	return t.emit(&Event{Type: EventTypeSupplementary, Content: text, Memories: memories})
}

func (t *turn) stageDone(stage string, start time.Time, err error) {
	dur := time.Since(start)
	t.o.metrics.RecordStage(stage, dur, err != nil)
	if err != nil {
		t.reqCtx.ForStage(stage).Warn("Orchestrator: stage degraded",
			slog.String("error", err.Error()),
			slog.Int64(observability.LogFieldDuration, dur.Milliseconds()),
		)
	}
}

func (t *turn) emit(e *Event) error {
	e.Elapsed = time.Since(t.start)
	if err := t.callback(e); err != nil {
		return fmt.Errorf("deliver %s event: %w", e.Type, err)
	}
	t.emitted++
	t.o.metrics.RecordEvent()
	t.reqCtx.Debug("Orchestrator: event emitted",
		slog.String(observability.LogFieldEventType, string(e.Type)),
		slog.Int("memories", len(e.Memories)),
		slog.Int64(observability.LogFieldDuration, e.Elapsed.Milliseconds()),
	)
	return nil
}
