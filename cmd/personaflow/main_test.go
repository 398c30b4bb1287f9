package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/personaflow/internal/profile"
	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/agent"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
)

var fusedReply = strings.Repeat("那时候家里一到饭点就特别热闹，", 14)

// scriptedLLM answers by the system prompt's purpose markers.
func scriptedLLM() *ai.MockLLMService {
	return &ai.MockLLMService{Handler: func(_ context.Context, msgs []ai.Message, opts ai.ChatOptions) (string, error) {
		system := msgs[0].Content
		switch {
		case opts.MaxTokens == 8:
			if strings.Contains(msgs[len(msgs)-1].Content, "小时候") {
				return "YES", nil
			}
			return "NO", nil
		case strings.Contains(system, "下意识"):
			return "哎呀，这个嘛……", nil
		default:
			return fusedReply, nil
		}
	}}
}

func testProfile(t *testing.T, backend string) *profile.Profile {
	t.Helper()
	prof := &profile.Profile{
		Mode:                "dev",
		Data:                t.TempDir(),
		RecollectionBackend: backend,
		PersonasFile:        filepath.Join("testdata", "personas.yaml"),
	}
	prof.FromEnv()
	require.NoError(t, prof.Validate())
	return prof
}

func newTestComponents(t *testing.T, backend string) *components {
	t.Helper()
	prof := testProfile(t, backend)
	comps, err := buildComponents(context.Background(), prof, ai.NewConfigFromProfile(prof),
		scriptedLLM(), ai.NewMockEmbeddingService("家", "工作", "爱好"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close() })
	return comps
}

func TestBuildComponents(t *testing.T) {
	for _, backend := range []string{"chromem", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			comps := newTestComponents(t, backend)

			assert.Equal(t, []string{"farmer", "teacher"}, comps.personas.IDs())
			assert.InDelta(t, 0.3, comps.retriever.Floor(), 1e-9)

			var out bytes.Buffer
			require.NoError(t, runSeed(context.Background(), comps.fixture, comps.store, false, &out))
			assert.Contains(t, out.String(), "teacher: 3 recollections")
			assert.Contains(t, out.String(), "seeded 3 recollections for 2 personas")

			got, err := comps.retriever.Retrieve(context.Background(), "teacher", "你小时候家里什么样", 0)
			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.Equal(t, "家庭聚餐", got[0].Title)
		})
	}
}

func TestRunSeedReset(t *testing.T) {
	comps := newTestComponents(t, "chromem")
	ctx := context.Background()

	require.NoError(t, runSeed(ctx, comps.fixture, comps.store, false, &bytes.Buffer{}))
	for _, e := range comps.fixture.Personas {
		for _, r := range e.Recollections {
			r.ID = ""
		}
	}
	require.NoError(t, runSeed(ctx, comps.fixture, comps.store, true, &bytes.Buffer{}))

	all, err := comps.store.List(ctx, "teacher")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunChat(t *testing.T) {
	comps := newTestComponents(t, "chromem")
	ctx := context.Background()
	require.NoError(t, runSeed(ctx, comps.fixture, comps.store, false, &bytes.Buffer{}))

	var out bytes.Buffer
	in := strings.NewReader("你好\n\n你小时候家里什么样\n")
	require.NoError(t, runChat(ctx, comps.orchestrator, "teacher", nil, in, &out))

	var types []agent.EventType
	var last agent.Event
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var e agent.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		types = append(types, e.Type)
		last = e
	}
	assert.Equal(t, []agent.EventType{agent.EventTypeDirect, agent.EventTypeImmediate, agent.EventTypeSupplementary}, types)
	assert.Equal(t, fusedReply, last.Content)
	require.NotEmpty(t, last.Memories)
	assert.Equal(t, recollection.KindFamily, last.Memories[0].Kind)
}

func TestRunChatUnknownPersona(t *testing.T) {
	comps := newTestComponents(t, "chromem")
	err := runChat(context.Background(), comps.orchestrator, "nobody", nil, strings.NewReader("你好\n"), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds([]string{"Family", " work "})
	require.NoError(t, err)
	assert.Equal(t, []recollection.Kind{recollection.KindFamily, recollection.KindWork}, kinds)

	_, err = parseKinds([]string{"cooking"})
	assert.Error(t, err)

	kinds, err = parseKinds(nil)
	require.NoError(t, err)
	assert.Empty(t, kinds)
}
