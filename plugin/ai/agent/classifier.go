package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/timeout"
)

// Classifier decides whether an utterance needs recollection.
type Classifier struct {
	gen Generator
}

// NewClassifier creates a Classifier.
func NewClassifier(gen Generator) *Classifier {
	return &Classifier{gen: gen}
}

// Classify sees only the utterance and the persona identity. On any failure it
// returns false together with a *StageError; callers decide whether the cause
// (see generation.IsUnreachable) is fatal.
func (c *Classifier) Classify(ctx context.Context, p *persona.Persona, utterance string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout.ClassifyTimeout)
	defer cancel()

	system, user := classifierPrompt(p, utterance)
	out, err := c.gen.GenerateText(ctx, &generation.Request{
		Purpose:     PurposeClassify,
		System:      system,
		User:        user,
		MaxTokens:   8,
		Temperature: float32Ptr(0),
	})
	if err != nil {
		return false, newStageError(StageClassify, ErrClassificationFailure, err)
	}

	needed, ok := parseDecision(out)
	if !ok {
		return false, newStageError(StageClassify, ErrClassificationFailure, fmt.Errorf("unrecognized decision %q", truncate(out, 40)))
	}
	return needed, nil
}

// parseDecision reads a YES/NO answer, tolerating case, punctuation and Chinese equivalents.
func parseDecision(out string) (needed bool, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(out))
	s = strings.TrimLeft(s, "\"'“‘`*【[（( ")
	switch {
	case strings.HasPrefix(s, "YES"), strings.HasPrefix(s, "是"), strings.HasPrefix(s, "需要"):
		return true, true
	case strings.HasPrefix(s, "NO"), strings.HasPrefix(s, "否"), strings.HasPrefix(s, "不需要"), strings.HasPrefix(s, "不"):
		return false, true
	}
	return false, false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
