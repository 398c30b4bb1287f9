package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileEnvVars = []string{
	"PERSONAFLOW_LLM_PROVIDER",
	"PERSONAFLOW_LLM_MODEL",
	"PERSONAFLOW_LLM_MAX_TOKENS",
	"PERSONAFLOW_LLM_TEMPERATURE",
	"PERSONAFLOW_LLM_RPS",
	"PERSONAFLOW_LLM_MAX_CONCURRENCY",
	"PERSONAFLOW_DEEPSEEK_API_KEY",
	"PERSONAFLOW_DEEPSEEK_BASE_URL",
	"PERSONAFLOW_OPENAI_API_KEY",
	"PERSONAFLOW_OPENAI_BASE_URL",
	"PERSONAFLOW_SILICONFLOW_API_KEY",
	"PERSONAFLOW_SILICONFLOW_BASE_URL",
	"PERSONAFLOW_ANTHROPIC_API_KEY",
	"PERSONAFLOW_EMBEDDING_PROVIDER",
	"PERSONAFLOW_EMBEDDING_MODEL",
	"PERSONAFLOW_EMBEDDING_DIMENSIONS",
	"PERSONAFLOW_EMBEDDING_CACHE_SIZE",
	"PERSONAFLOW_RECOLLECTION_BACKEND",
	"PERSONAFLOW_PERSONAS_FILE",
	"PERSONAFLOW_RELEVANCE_FLOOR",
	"PERSONAFLOW_RETRIEVAL_LIMIT",
	"PERSONAFLOW_SUPPLEMENT_MIN_RUNES",
	"PERSONAFLOW_CHAT_RPS",
	"PERSONAFLOW_CHAT_BURST",
}

// clearProfileEnvVars 清除所有相关环境变量
func clearProfileEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range profileEnvVars {
		t.Setenv(key, "")
	}
}

// TestProfileDefaults 测试默认值
func TestProfileDefaults(t *testing.T) {
	clearProfileEnvVars(t)

	p := &Profile{}
	p.FromEnv()

	tests := []struct {
		name     string
		actual   any
		expected any
	}{
		{"LLMProvider default", p.LLMProvider, "deepseek"},
		{"LLMModel default", p.LLMModel, "deepseek-chat"},
		{"LLMMaxTokens default", p.LLMMaxTokens, 1024},
		{"LLMTemperature default", p.LLMTemperature, float32(0.7)},
		{"LLMMaxConcurrency default", p.LLMMaxConcurrency, 8},
		{"DeepSeekBaseURL default", p.DeepSeekBaseURL, "https://api.deepseek.com"},
		{"OpenAIBaseURL default", p.OpenAIBaseURL, "https://api.openai.com/v1"},
		{"SiliconFlowBaseURL default", p.SiliconFlowBaseURL, "https://api.siliconflow.cn/v1"},
		{"EmbeddingProvider default", p.EmbeddingProvider, "siliconflow"},
		{"EmbeddingModel default", p.EmbeddingModel, "BAAI/bge-m3"},
		{"EmbeddingDims default", p.EmbeddingDims, 1024},
		{"RecollectionBackend default", p.RecollectionBackend, "chromem"},
		{"RelevanceFloor default", p.RelevanceFloor, 0.3},
		{"RetrievalLimit default", p.RetrievalLimit, 3},
		{"SupplementMinRunes default", p.SupplementMinRunes, 180},
		{"ChatRequestsPerSec default", p.ChatRequestsPerSec, 2.0},
		{"ChatBurst default", p.ChatBurst, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.actual)
		})
	}
}

// TestProfileFromEnv 测试从环境变量读取配置
func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) any
		expected any
	}{
		{
			name:     "llm provider",
			envVar:   "PERSONAFLOW_LLM_PROVIDER",
			envValue: "anthropic",
			field:    func(p *Profile) any { return p.LLMProvider },
			expected: "anthropic",
		},
		{
			name:     "retrieval limit",
			envVar:   "PERSONAFLOW_RETRIEVAL_LIMIT",
			envValue: "5",
			field:    func(p *Profile) any { return p.RetrievalLimit },
			expected: 5,
		},
		{
			name:     "invalid retrieval limit falls back to default",
			envVar:   "PERSONAFLOW_RETRIEVAL_LIMIT",
			envValue: "five",
			field:    func(p *Profile) any { return p.RetrievalLimit },
			expected: 3,
		},
		{
			name:     "relevance floor",
			envVar:   "PERSONAFLOW_RELEVANCE_FLOOR",
			envValue: "0.45",
			field:    func(p *Profile) any { return p.RelevanceFloor },
			expected: 0.45,
		},
		{
			name:     "recollection backend",
			envVar:   "PERSONAFLOW_RECOLLECTION_BACKEND",
			envValue: "sqlite",
			field:    func(p *Profile) any { return p.RecollectionBackend },
			expected: "sqlite",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProfileEnvVars(t)
			t.Setenv(tt.envVar, tt.envValue)

			p := &Profile{}
			p.FromEnv()
			assert.Equal(t, tt.expected, tt.field(p))
		})
	}
}

func TestProfileFromEnvKeepsFlagValues(t *testing.T) {
	clearProfileEnvVars(t)
	t.Setenv("PERSONAFLOW_LLM_MODEL", "from-env")

	p := &Profile{LLMModel: "from-flag"}
	p.FromEnv()
	assert.Equal(t, "from-flag", p.LLMModel)
}

func TestHasLLMCredentials(t *testing.T) {
	tests := []struct {
		name     string
		profile  Profile
		expected bool
	}{
		{"deepseek with key", Profile{LLMProvider: "deepseek", DeepSeekAPIKey: "k"}, true},
		{"deepseek without key", Profile{LLMProvider: "deepseek"}, false},
		{"anthropic with key", Profile{LLMProvider: "anthropic", AnthropicAPIKey: "k"}, true},
		{"unknown provider", Profile{LLMProvider: "mystery", OpenAIAPIKey: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.profile.HasLLMCredentials())
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("sqlite backend derives dsn in data dir", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "dev", Data: dir, RecollectionBackend: "sqlite", RelevanceFloor: 0.3, RetrievalLimit: 3}
		require.NoError(t, p.Validate())
		assert.Equal(t, "sqlite", p.Driver)
		assert.Equal(t, filepath.Join(dir, "personaflow_dev.db"), p.DSN)
	})

	t.Run("unknown mode becomes demo", func(t *testing.T) {
		p := &Profile{Mode: "weird", Data: t.TempDir(), RecollectionBackend: "chromem", RelevanceFloor: 0.3, RetrievalLimit: 3}
		require.NoError(t, p.Validate())
		assert.Equal(t, "demo", p.Mode)
	})

	t.Run("creates missing data dir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		p := &Profile{Mode: "dev", Data: dir, RecollectionBackend: "chromem", RelevanceFloor: 0.3, RetrievalLimit: 3}
		require.NoError(t, p.Validate())
		_, err := os.Stat(dir)
		assert.NoError(t, err)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), RecollectionBackend: "postgres", RelevanceFloor: 0.3, RetrievalLimit: 3}
		assert.Error(t, p.Validate())
	})

	t.Run("unknown backend", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), RecollectionBackend: "neo4j", RelevanceFloor: 0.3, RetrievalLimit: 3}
		assert.Error(t, p.Validate())
	})

	t.Run("floor out of range", func(t *testing.T) {
		p := &Profile{Mode: "dev", Data: t.TempDir(), RecollectionBackend: "chromem", RelevanceFloor: 1.5, RetrievalLimit: 3}
		assert.Error(t, p.Validate())
	})
}
