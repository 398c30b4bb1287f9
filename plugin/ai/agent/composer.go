package agent

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
	"github.com/hrygo/personaflow/plugin/ai/timeout"
)

// Degraded lines used when a composer call fails. They never expose errors.
const (
	fallbackReflex     = "嗯……你这么一问，我得好好想想。"
	fallbackDirect     = "这个嘛，我一时不知道从哪儿说起，你能再多讲讲你想知道的吗？"
	fallbackNoMemory   = "这事儿我一下子还真想不起来了，可能是时间太久了，等我想起来再跟你慢慢说。"
	fallbackSupplement = "说起这些，心里挺有感触的，一时半会儿还真说不完，改天我们再细聊。"
)

// Composer produces the persona's replies. Every method returns usable text;
// a non-nil error marks that the text is a degraded fallback.
type Composer struct {
	gen Generator
	cfg ai.OrchestratorConfig
}

// NewComposer creates a Composer. Zero config fields take the defaults.
func NewComposer(gen Generator, cfg ai.OrchestratorConfig) *Composer {
	def := ai.DefaultOrchestratorConfig()
	if cfg.SupplementMinRunes <= 0 {
		cfg.SupplementMinRunes = def.SupplementMinRunes
	}
	if cfg.ReflexHistoryTurns <= 0 {
		cfg.ReflexHistoryTurns = def.ReflexHistoryTurns
	}
	if cfg.DirectHistoryTurns <= 0 {
		cfg.DirectHistoryTurns = def.DirectHistoryTurns
	}
	if cfg.SupplementHistoryTurns <= 0 {
		cfg.SupplementHistoryTurns = def.SupplementHistoryTurns
	}
	return &Composer{gen: gen, cfg: cfg}
}

// Direct answers from persona traits and recent history alone.
func (c *Composer) Direct(ctx context.Context, p *persona.Persona, utterance string, history []Turn) (string, error) {
	system, user := directPrompt(p, utterance, lastTurns(history, c.cfg.DirectHistoryTurns))
	return c.compose(ctx, StageDirect, timeout.ComposeTimeout, fallbackDirect, &generation.Request{
		Purpose:   PurposeDirect,
		System:    system,
		User:      user,
		MaxTokens: 400,
	})
}

// Reflex is the short first reply. It never draws on recollections.
func (c *Composer) Reflex(ctx context.Context, p *persona.Persona, utterance string, history []Turn) (string, error) {
	system, user := reflexPrompt(p, utterance, lastTurns(history, c.cfg.ReflexHistoryTurns))
	return c.compose(ctx, StageReflex, timeout.ReflexTimeout, fallbackReflex, &generation.Request{
		Purpose:   PurposeReflex,
		System:    system,
		User:      user,
		MaxTokens: 120,
	})
}

// NoMemory deflects in character when nothing relevant was recalled.
func (c *Composer) NoMemory(ctx context.Context, p *persona.Persona, utterance, reflex string) (string, error) {
	system, user := noMemoryPrompt(p, utterance, reflex)
	return c.compose(ctx, StageNoMemory, timeout.ComposeTimeout, fallbackNoMemory, &generation.Request{
		Purpose:   PurposeNoMemory,
		System:    system,
		User:      user,
		MaxTokens: 300,
	})
}

// Supplement fuses the recollections into a longer reply. A first draft
// shorter than the configured floor is regenerated once with an amplified
// instruction; the second draft is accepted as is.
func (c *Composer) Supplement(ctx context.Context, p *persona.Persona, utterance string, history []Turn, reflex string, memories []*recollection.Recollection) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.SupplementTimeout)
	defer cancel()

	system, user := supplementPrompt(p, utterance, lastTurns(history, c.cfg.SupplementHistoryTurns), reflex, memories)
	req := &generation.Request{
		Purpose:   PurposeSupplement,
		System:    system,
		User:      user,
		MaxTokens: 1200,
	}

	draft, err := c.generate(ctx, req)
	if err != nil {
		return fallbackSupplement, newStageError(StageSupplement, ErrComposerFailure, err)
	}
	if utf8.RuneCountInString(draft) >= c.cfg.SupplementMinRunes {
		return draft, nil
	}

	amplified := *req
	amplified.System = system + amplifiedLengthWarning
	second, err := c.generate(ctx, &amplified)
	if err != nil {
		// The short draft is still a real reply.
		return draft, nil
	}
	return second, nil
}

func (c *Composer) compose(ctx context.Context, stage string, limit time.Duration, fallback string, req *generation.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	out, err := c.generate(ctx, req)
	if err != nil {
		return fallback, newStageError(stage, ErrComposerFailure, err)
	}
	return out, nil
}

// generate treats blank output as an empty response whatever the Generator does.
func (c *Composer) generate(ctx context.Context, req *generation.Request) (string, error) {
	out, err := c.gen.GenerateText(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &generation.Error{Kind: generation.FailureEmptyResponse, Purpose: req.Purpose}
	}
	return out, nil
}
