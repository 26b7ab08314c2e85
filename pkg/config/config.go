// Package config loads, merges, and validates the engine's runtime
// tunables from YAML, environment variables, and built-in defaults.
package config

import "time"

// EngineConfig holds every tunable recognized by the session core.
type EngineConfig struct {
	MaxTargetPointsPerSession    int           `yaml:"max_target_points_per_session,omitempty" validate:"omitempty,min=1"`
	EvaluatorConfidenceThreshold float64       `yaml:"evaluator_confidence_threshold,omitempty" validate:"omitempty,min=0,max=1"`
	RabbitholeEnterThreshold     float64       `yaml:"rabbithole_enter_threshold,omitempty" validate:"omitempty,min=0,max=1"`
	RabbitholeReturnThreshold    float64       `yaml:"rabbithole_return_threshold,omitempty" validate:"omitempty,min=0,max=1"`
	LLMTimeoutSeconds            int           `yaml:"llm_timeout_seconds,omitempty" validate:"omitempty,min=1"`
	DesiredRetention             float64       `yaml:"desired_retention,omitempty" validate:"omitempty,min=0,max=1"`
	EvaluatorRecentMessageWindow int           `yaml:"evaluator_recent_message_window,omitempty" validate:"omitempty,min=1"`
	StallThresholdMs             int64         `yaml:"stall_threshold_ms,omitempty" validate:"omitempty,min=0"`
	SessionTimeout               time.Duration `yaml:"-"`
}

// LLMProviderConfig names the models bound to each of the engine's
// four LLM call sites — the tutor (streaming, load-bearing), the
// evaluator (cheap, non-streaming), the transcription pipeline
// (cheapest, non-streaming), and the rabbithole detector and agent
// (non-streaming).
type LLMProviderConfig struct {
	TutorModel         string `yaml:"tutor_model,omitempty"`
	EvaluatorModel     string `yaml:"evaluator_model,omitempty"`
	TranscriptionModel string `yaml:"transcription_model,omitempty"`
	RabbitholeModel    string `yaml:"rabbithole_model,omitempty"`
	ServiceAddr        string `yaml:"service_addr,omitempty"`
	AnthropicAPIKeyEnv string `yaml:"anthropic_api_key_env,omitempty"`
	UseDirectAnthropic bool   `yaml:"use_direct_anthropic,omitempty"`
}

// FSRSConfig holds the weight vector and retention target fed to
// pkg/fsrs.
type FSRSConfig struct {
	Weights          [19]float64 `yaml:"weights,omitempty"`
	DesiredRetention float64     `yaml:"desired_retention,omitempty" validate:"omitempty,min=0,max=1"`
}

// SweeperConfig controls the background job that expires stale Paused
// sessions.
type SweeperConfig struct {
	Schedule string        `yaml:"schedule,omitempty"`
	PauseTTL time.Duration `yaml:"pause_ttl,omitempty"`
	Enabled  bool          `yaml:"enabled,omitempty"`
}

// ServerConfig holds the HTTP/WebSocket transport's own settings.
type ServerConfig struct {
	ListenAddr       string   `yaml:"listen_addr,omitempty"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins,omitempty"`
}

// Config is the umbrella configuration object returned by Initialize
// and threaded through every component at construction time.
type Config struct {
	configDir string

	Engine  EngineConfig
	LLM     LLMProviderConfig
	FSRS    FSRSConfig
	Sweeper SweeperConfig
	Server  ServerConfig
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}
