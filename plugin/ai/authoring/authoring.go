// Package authoring drafts recollections for a persona with the generation
// backend and stores the drafts that pass validation.
package authoring

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
	"github.com/hrygo/personaflow/plugin/ai/timeout"
)

// DefaultKinds is the set drafted when none is requested.
var DefaultKinds = []recollection.Kind{
	recollection.KindFamily,
	recollection.KindEducation,
	recollection.KindWork,
	recollection.KindHobby,
	recollection.KindGrowth,
}

// expectedFields are the keys every draft must carry.
var expectedFields = []string{
	"title", "content", "time", "emotion", "importance",
	"behavior_impact", "trigger_system", "memory_distortion",
}

const defaultConcurrency = 3

// StructuredGenerator is implemented by *generation.Client.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req *generation.Request, expectedFields []string) (*generation.StructuredResult, error)
}

// Quarantined is a draft that could not be used.
type Quarantined struct {
	Kind   recollection.Kind `json:"kind"`
	Reason string            `json:"reason"`
	Raw    string            `json:"raw,omitempty"`
}

// Result holds the drafts of one Generate call in request order.
type Result struct {
	Accepted    []*recollection.Recollection `json:"accepted"`
	Quarantined []*Quarantined               `json:"quarantined"`
	// IDs is set by Populate.
	IDs []string `json:"ids,omitempty"`
}

// Author drafts and stores recollections.
type Author struct {
	gen         StructuredGenerator
	store       recollection.Store
	concurrency int
}

// NewAuthor creates an Author. concurrency <= 0 uses the default of 3.
func NewAuthor(gen StructuredGenerator, store recollection.Store, concurrency int) *Author {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Author{gen: gen, store: store, concurrency: concurrency}
}

// Generate drafts one recollection per kind. Unparsed or invalid drafts are
// quarantined rather than failing the call; an unreachable backend aborts it.
func (a *Author) Generate(ctx context.Context, p *persona.Persona, kinds []recollection.Kind) (*Result, error) {
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}

	accepted := make([]*recollection.Recollection, len(kinds))
	quarantined := make([]*Quarantined, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			r, q, err := a.draft(gctx, p, kind)
			if err != nil {
				return err
			}
			accepted[i], quarantined[i] = r, q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Accepted: []*recollection.Recollection{}, Quarantined: []*Quarantined{}}
	for i := range kinds {
		if accepted[i] != nil {
			result.Accepted = append(result.Accepted, accepted[i])
		}
		if quarantined[i] != nil {
			result.Quarantined = append(result.Quarantined, quarantined[i])
		}
	}

	slog.Info("Authoring: drafts generated",
		"persona_id", p.ID,
		"accepted", len(result.Accepted),
		"quarantined", len(result.Quarantined),
	)
	return result, nil
}

// Populate generates drafts and batch-inserts the accepted ones.
func (a *Author) Populate(ctx context.Context, p *persona.Persona, kinds []recollection.Kind) (*Result, error) {
	result, err := a.Generate(ctx, p, kinds)
	if err != nil {
		return nil, err
	}
	if len(result.Accepted) == 0 {
		result.IDs = []string{}
		return result, nil
	}
	ids, err := a.store.InsertBatch(ctx, p.ID, result.Accepted)
	if err != nil {
		return nil, fmt.Errorf("store drafted recollections: %w", err)
	}
	result.IDs = ids
	return result, nil
}

// draft returns exactly one of an accepted record or a quarantine entry,
// or an error when the backend is unreachable.
func (a *Author) draft(ctx context.Context, p *persona.Persona, kind recollection.Kind) (*recollection.Recollection, *Quarantined, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.AuthoringTimeout)
	defer cancel()

	system, user := draftPrompt(p, kind)
	res, err := a.gen.GenerateStructured(ctx, &generation.Request{
		Purpose:   "author_" + string(kind),
		System:    system,
		User:      user,
		MaxTokens: 1500,
	}, expectedFields)
	if err != nil {
		if generation.IsUnreachable(err) {
			return nil, nil, err
		}
		return nil, quarantine(p, kind, err.Error(), ""), nil
	}
	if !res.Parsed() {
		return nil, quarantine(p, kind, res.ErrorMarker, res.Raw), nil
	}

	// Some models answer with "type" instead of "kind".
	if _, ok := res.Fields["kind"]; !ok {
		if v, ok := res.Fields["type"]; ok {
			res.Fields["kind"] = v
		}
	}

	r := &recollection.Recollection{}
	if err := res.Decode(r); err != nil {
		return nil, quarantine(p, kind, err.Error(), res.Raw), nil
	}
	r.ID = ""
	r.PersonaID = p.ID
	if !recollection.ParseKind(string(r.Kind)).Known() {
		r.Kind = kind
	}
	if err := r.Prepare(); err != nil {
		return nil, quarantine(p, kind, err.Error(), res.Raw), nil
	}
	return r, nil, nil
}

func quarantine(p *persona.Persona, kind recollection.Kind, reason, raw string) *Quarantined {
	slog.Warn("Authoring: draft quarantined", "persona_id", p.ID, "kind", kind, "reason", reason)
	return &Quarantined{Kind: kind, Reason: reason, Raw: raw}
}
