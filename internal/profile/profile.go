package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the persona server and CLI.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where recollections are stored for the sql backends
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// PersonasFile is the YAML fixture that personas are loaded from
	PersonasFile string

	// LLM configuration
	LLMProvider        string  // PERSONAFLOW_LLM_PROVIDER (default: deepseek)
	LLMModel           string  // PERSONAFLOW_LLM_MODEL (default: deepseek-chat)
	LLMMaxTokens       int     // PERSONAFLOW_LLM_MAX_TOKENS (default: 1024)
	LLMTemperature     float32 // PERSONAFLOW_LLM_TEMPERATURE (default: 0.7)
	LLMRequestsPerSec  float64 // PERSONAFLOW_LLM_RPS (default: 0, unlimited)
	LLMMaxConcurrency  int     // PERSONAFLOW_LLM_MAX_CONCURRENCY (default: 8)
	DeepSeekAPIKey     string  // PERSONAFLOW_DEEPSEEK_API_KEY
	DeepSeekBaseURL    string  // PERSONAFLOW_DEEPSEEK_BASE_URL (default: https://api.deepseek.com)
	OpenAIAPIKey       string  // PERSONAFLOW_OPENAI_API_KEY
	OpenAIBaseURL      string  // PERSONAFLOW_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	SiliconFlowAPIKey  string  // PERSONAFLOW_SILICONFLOW_API_KEY
	SiliconFlowBaseURL string  // PERSONAFLOW_SILICONFLOW_BASE_URL (default: https://api.siliconflow.cn/v1)
	AnthropicAPIKey    string  // PERSONAFLOW_ANTHROPIC_API_KEY

	// Embedding configuration
	EmbeddingProvider  string // PERSONAFLOW_EMBEDDING_PROVIDER (default: siliconflow)
	EmbeddingModel     string // PERSONAFLOW_EMBEDDING_MODEL (default: BAAI/bge-m3)
	EmbeddingDims      int    // PERSONAFLOW_EMBEDDING_DIMENSIONS (default: 1024)
	EmbeddingCacheSize int    // PERSONAFLOW_EMBEDDING_CACHE_SIZE (default: 1000)

	// Recollection configuration
	RecollectionBackend string  // PERSONAFLOW_RECOLLECTION_BACKEND (default: chromem)
	RelevanceFloor      float64 // PERSONAFLOW_RELEVANCE_FLOOR (default: 0.3)
	RetrievalLimit      int     // PERSONAFLOW_RETRIEVAL_LIMIT (default: 3)
	SupplementMinRunes  int     // PERSONAFLOW_SUPPLEMENT_MIN_RUNES (default: 180)

	// Chat rate limit per persona
	ChatRequestsPerSec float64 // PERSONAFLOW_CHAT_RPS (default: 2)
	ChatBurst          int     // PERSONAFLOW_CHAT_BURST (default: 5)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// HasLLMCredentials reports whether the selected LLM provider has an API key.
func (p *Profile) HasLLMCredentials() bool {
	switch p.LLMProvider {
	case "deepseek":
		return p.DeepSeekAPIKey != ""
	case "openai":
		return p.OpenAIAPIKey != ""
	case "siliconflow":
		return p.SiliconFlowAPIKey != ""
	case "anthropic":
		return p.AnthropicAPIKey != ""
	default:
		return false
	}
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer env value, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("invalid float env value, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return f
}

// FromEnv loads the AI and recollection settings from PERSONAFLOW_* environment variables.
// Fields already populated (for example by command-line flags) are kept.
func (p *Profile) FromEnv() {
	setString := func(field *string, key, defaultValue string) {
		if *field != "" {
			return
		}
		*field = getEnvOrDefault(key, defaultValue)
	}

	setString(&p.LLMProvider, "PERSONAFLOW_LLM_PROVIDER", "deepseek")
	setString(&p.LLMModel, "PERSONAFLOW_LLM_MODEL", "deepseek-chat")
	setString(&p.DeepSeekAPIKey, "PERSONAFLOW_DEEPSEEK_API_KEY", "")
	setString(&p.DeepSeekBaseURL, "PERSONAFLOW_DEEPSEEK_BASE_URL", "https://api.deepseek.com")
	setString(&p.OpenAIAPIKey, "PERSONAFLOW_OPENAI_API_KEY", "")
	setString(&p.OpenAIBaseURL, "PERSONAFLOW_OPENAI_BASE_URL", "https://api.openai.com/v1")
	setString(&p.SiliconFlowAPIKey, "PERSONAFLOW_SILICONFLOW_API_KEY", "")
	setString(&p.SiliconFlowBaseURL, "PERSONAFLOW_SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")
	setString(&p.AnthropicAPIKey, "PERSONAFLOW_ANTHROPIC_API_KEY", "")

	setString(&p.EmbeddingProvider, "PERSONAFLOW_EMBEDDING_PROVIDER", "siliconflow")
	setString(&p.EmbeddingModel, "PERSONAFLOW_EMBEDDING_MODEL", "BAAI/bge-m3")
	setString(&p.RecollectionBackend, "PERSONAFLOW_RECOLLECTION_BACKEND", "chromem")
	setString(&p.PersonasFile, "PERSONAFLOW_PERSONAS_FILE", "")

	if p.LLMMaxTokens == 0 {
		p.LLMMaxTokens = getIntEnvOrDefault("PERSONAFLOW_LLM_MAX_TOKENS", 1024)
	}
	if p.LLMTemperature == 0 {
		p.LLMTemperature = float32(getFloatEnvOrDefault("PERSONAFLOW_LLM_TEMPERATURE", 0.7))
	}
	if p.LLMRequestsPerSec == 0 {
		p.LLMRequestsPerSec = getFloatEnvOrDefault("PERSONAFLOW_LLM_RPS", 0)
	}
	if p.LLMMaxConcurrency == 0 {
		p.LLMMaxConcurrency = getIntEnvOrDefault("PERSONAFLOW_LLM_MAX_CONCURRENCY", 8)
	}
	if p.EmbeddingDims == 0 {
		p.EmbeddingDims = getIntEnvOrDefault("PERSONAFLOW_EMBEDDING_DIMENSIONS", 1024)
	}
	if p.EmbeddingCacheSize == 0 {
		p.EmbeddingCacheSize = getIntEnvOrDefault("PERSONAFLOW_EMBEDDING_CACHE_SIZE", 1000)
	}
	if p.RelevanceFloor == 0 {
		p.RelevanceFloor = getFloatEnvOrDefault("PERSONAFLOW_RELEVANCE_FLOOR", 0.3)
	}
	if p.RetrievalLimit == 0 {
		p.RetrievalLimit = getIntEnvOrDefault("PERSONAFLOW_RETRIEVAL_LIMIT", 3)
	}
	if p.SupplementMinRunes == 0 {
		p.SupplementMinRunes = getIntEnvOrDefault("PERSONAFLOW_SUPPLEMENT_MIN_RUNES", 180)
	}
	if p.ChatRequestsPerSec == 0 {
		p.ChatRequestsPerSec = getFloatEnvOrDefault("PERSONAFLOW_CHAT_RPS", 2)
	}
	if p.ChatBurst == 0 {
		p.ChatBurst = getIntEnvOrDefault("PERSONAFLOW_CHAT_BURST", 5)
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "personaflow")
		} else {
			p.Data = "/var/opt/personaflow"
		}
	}
	if p.Data == "" {
		p.Data = "."
	}
	if _, err := os.Stat(p.Data); os.IsNotExist(err) {
		if err := os.MkdirAll(p.Data, 0770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	switch p.RecollectionBackend {
	case "chromem", "postgres", "sqlite":
	default:
		return errors.Errorf("unknown recollection backend %q: expected chromem, postgres or sqlite", p.RecollectionBackend)
	}
	if p.RecollectionBackend != "chromem" {
		p.Driver = p.RecollectionBackend
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("personaflow_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("postgres backend requires a DSN")
	}

	if p.RelevanceFloor < 0 || p.RelevanceFloor > 1 {
		return errors.Errorf("relevance floor must be within [0,1], got %v", p.RelevanceFloor)
	}
	if p.RetrievalLimit <= 0 {
		return errors.Errorf("retrieval limit must be positive, got %d", p.RetrievalLimit)
	}

	return nil
}
