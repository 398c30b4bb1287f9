package authoring

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/personaflow/plugin/ai"
	"github.com/hrygo/personaflow/plugin/ai/generation"
	"github.com/hrygo/personaflow/plugin/ai/persona"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
	"github.com/hrygo/personaflow/plugin/ai/recollection/chromem"
)

const familyDraft = "好的，这是往事：\n```json\n" + `{
  "kind": "family",
  "title": "年夜饭",
  "content": "八岁那年除夕，全家挤在小屋里包饺子，家里热气腾腾",
  "time": {"age": 8, "period": "童年", "specific": "除夕夜"},
  "emotion": {"immediate": ["兴奋"], "reflected": ["怀念"], "residual": "温暖", "intensity": 8},
  "importance": {"score": 9, "reason": "一家人最齐的一次", "frequency": "每年过年"},
  "behavior_impact": {"habit_formed": "过年一定回家", "attitude_change": "看重团聚", "response_pattern": "聊到家就话多"},
  "trigger_system": {"sensory": ["饺子香"], "contextual": ["春节"], "emotional": ["孤单时"]},
  "memory_distortion": {"exaggerated": "屋子的热闹", "downplayed": "当时的拮据", "reason": "童年滤镜"}
}` + "\n```"

const educationDraft = `{"type": "education", "title": "高考", "content": "考场外下着雨，我攥着准考证", "time": {"age": 18}, "emotion": {"intensity": 6}, "importance": {"score": 7}, "behavior_impact": {}, "trigger_system": {}, "memory_distortion": {}}`

func teacher() *persona.Persona {
	return &persona.Persona{ID: "teacher", Name: "教师甲", Age: 45, Occupation: "中学语文老师"}
}

func scriptedClient(fail error) *generation.Client {
	llm := &ai.MockLLMService{Handler: func(_ context.Context, msgs []ai.Message, opts ai.ChatOptions) (string, error) {
		if fail != nil {
			return "", fail
		}
		user := msgs[len(msgs)-1].Content
		switch {
		case strings.Contains(user, `kind 固定为 "family"`):
			return familyDraft, nil
		case strings.Contains(user, `kind 固定为 "education"`):
			return educationDraft, nil
		case strings.Contains(user, `kind 固定为 "hobby"`):
			return `{"title": "爬山", "time": {"age": 30}}`, nil
		}
		return "抱歉，我写不出来。", nil
	}}
	return generation.NewClient(llm)
}

func TestGenerate(t *testing.T) {
	a := NewAuthor(scriptedClient(nil), nil, 2)
	kinds := []recollection.Kind{recollection.KindFamily, recollection.KindWork, recollection.KindHobby, recollection.KindEducation}

	res, err := a.Generate(context.Background(), teacher(), kinds)
	require.NoError(t, err)

	require.Len(t, res.Accepted, 2)
	family := res.Accepted[0]
	assert.Equal(t, recollection.KindFamily, family.Kind)
	assert.Equal(t, "年夜饭", family.Title)
	assert.Equal(t, 8, family.Time.Age)
	assert.Equal(t, 8, family.Emotion.Intensity)
	assert.Equal(t, "过年一定回家", family.BehaviorImpact.HabitFormed)
	assert.Equal(t, "teacher", family.PersonaID)

	education := res.Accepted[1]
	assert.Equal(t, recollection.KindEducation, education.Kind)
	assert.Equal(t, 7, education.Importance.Score)

	require.Len(t, res.Quarantined, 2)
	assert.Equal(t, recollection.KindWork, res.Quarantined[0].Kind)
	assert.Equal(t, generation.ErrorMarker, res.Quarantined[0].Reason)
	assert.Equal(t, "抱歉，我写不出来。", res.Quarantined[0].Raw)
	assert.Equal(t, recollection.KindHobby, res.Quarantined[1].Kind)
	assert.Contains(t, res.Quarantined[1].Reason, "content is required")
}

func TestGenerateDefaultKinds(t *testing.T) {
	res, err := NewAuthor(scriptedClient(nil), nil, 0).Generate(context.Background(), teacher(), nil)
	require.NoError(t, err)
	assert.Len(t, res.Accepted, 2)
	assert.Len(t, res.Quarantined, len(DefaultKinds)-2)
}

func TestGenerateUnreachableAborts(t *testing.T) {
	fail := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	_, err := NewAuthor(scriptedClient(fail), nil, 0).Generate(context.Background(), teacher(), nil)
	require.Error(t, err)
	assert.True(t, generation.IsUnreachable(err))
}

func TestGenerateBackendErrorQuarantines(t *testing.T) {
	res, err := NewAuthor(scriptedClient(errors.New("status 500")), nil, 0).Generate(context.Background(), teacher(), []recollection.Kind{recollection.KindFamily})
	require.NoError(t, err)
	assert.Empty(t, res.Accepted)
	require.Len(t, res.Quarantined, 1)
	assert.Contains(t, res.Quarantined[0].Reason, "BACKEND_ERROR")
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	st := chromem.New(ai.NewMockEmbeddingService("家", "考"))
	a := NewAuthor(scriptedClient(nil), st, 0)

	res, err := a.Populate(ctx, teacher(), []recollection.Kind{recollection.KindFamily, recollection.KindEducation, recollection.KindWork})
	require.NoError(t, err)
	require.Len(t, res.IDs, 2)

	stored, err := st.List(ctx, "teacher")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	got, err := st.Get(ctx, "teacher", res.IDs[0])
	require.NoError(t, err)
	assert.Equal(t, "年夜饭", got.Title)

	empty, err := a.Populate(ctx, teacher(), []recollection.Kind{recollection.KindWork})
	require.NoError(t, err)
	assert.Empty(t, empty.IDs)
}
