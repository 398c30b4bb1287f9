package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hrygo/personaflow/internal/profile"
	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/agent"
	"github.com/hrygo/personaflow/plugin/ai/authoring"
	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
	"github.com/hrygo/personaflow/plugin/ai/recollection/chromem"
	"github.com/hrygo/personaflow/plugin/ai/retrieval"
	"github.com/hrygo/personaflow/store"
	"github.com/hrygo/personaflow/store/db"
)

// components is everything a command needs, built once from the profile.
type components struct {
	config       *ai.Config
	fixture      *persona.Fixture
	personas     *persona.StaticSource
	store        recollection.Store
	retriever    *retrieval.Retriever
	generator    *generation.Client
	orchestrator *agent.Orchestrator
	author       *authoring.Author

	closers []func() error
}

// openComponents builds the components against the configured remote services.
func openComponents(ctx context.Context, prof *profile.Profile) (*components, error) {
	cfg := ai.NewConfigFromProfile(prof)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	llm, err := ai.NewLLMService(&cfg.LLM)
	if err != nil {
		return nil, err
	}
	embedder, err := ai.NewEmbeddingService(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return buildComponents(ctx, prof, cfg, llm, embedder)
}

// buildComponents wires the stack over the given backends.
func buildComponents(ctx context.Context, prof *profile.Profile, cfg *ai.Config, llm ai.LLMService, embedder ai.EmbeddingService) (*components, error) {
	c := &components{config: cfg}

	if prof.PersonasFile != "" {
		fixture, err := persona.LoadFile(prof.PersonasFile)
		if err != nil {
			return nil, err
		}
		c.fixture = fixture
		c.personas = fixture.Source()
	} else {
		slog.Warn("no personas file configured, starting without personas")
		c.fixture = &persona.Fixture{}
		c.personas = persona.NewStaticSource()
	}

	st, err := c.openStore(ctx, prof, embedder)
	if err != nil {
		return nil, err
	}
	c.store = st

	c.retriever = retrieval.NewRetriever(st,
		retrieval.WithRelevanceFloor(cfg.Recollection.RelevanceFloor),
		retrieval.WithDefaultLimit(cfg.Recollection.Limit),
	)
	c.generator = generation.NewClient(llm,
		generation.WithRateLimit(cfg.LLM.RequestsPerSec, int(cfg.LLM.RequestsPerSec)+1),
		generation.WithMaxConcurrency(cfg.LLM.MaxConcurrency),
	)
	c.orchestrator = agent.NewOrchestrator(c.personas, c.generator, c.retriever, cfg.Orchestrator,
		agent.WithRetrievalLimit(cfg.Recollection.Limit),
	)
	c.author = authoring.NewAuthor(c.generator, st, 0)
	return c, nil
}

func (c *components) openStore(ctx context.Context, prof *profile.Profile, embedder ai.EmbeddingService) (recollection.Store, error) {
	switch cfg := c.config.Recollection; cfg.Backend {
	case "chromem":
		if cfg.PersistDir == "" {
			return chromem.New(embedder), nil
		}
		return chromem.NewPersistent(cfg.PersistDir, embedder)

	case "sqlite", "postgres":
		driver, err := db.NewDBDriver(prof)
		if err != nil {
			return nil, err
		}
		st := store.New(driver, prof)
		c.closers = append(c.closers, st.Close)
		if err := st.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate %s: %w", driver.Name(), err)
		}
		return recollection.NewSQLStore(st, embedder), nil

	default:
		return nil, fmt.Errorf("unsupported recollection backend: %s", cfg.Backend)
	}
}

// Close releases database handles.
func (c *components) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
