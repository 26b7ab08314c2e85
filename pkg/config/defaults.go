package config

import (
	"time"

	"github.com/recallhq/engine/pkg/fsrs"
)

// Defaults returns a fully-populated Config with the engine's built-in
// defaults. The loader merges user YAML on top of this.
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxTargetPointsPerSession:    10,
			EvaluatorConfidenceThreshold: 0.5,
			RabbitholeEnterThreshold:     0.7,
			RabbitholeReturnThreshold:    0.6,
			LLMTimeoutSeconds:            60,
			DesiredRetention:             0.9,
			EvaluatorRecentMessageWindow: 6,
			StallThresholdMs:             30000,
			SessionTimeout:               30 * time.Minute,
		},
		LLM: LLMProviderConfig{
			TutorModel:         "claude-sonnet",
			EvaluatorModel:     "claude-haiku",
			TranscriptionModel: "claude-haiku",
			RabbitholeModel:    "claude-sonnet",
			ServiceAddr:        "localhost:50051",
		},
		FSRS: FSRSConfig{
			Weights:          fsrs.DefaultWeights,
			DesiredRetention: 0.9,
		},
		Sweeper: SweeperConfig{
			Schedule: "*/5 * * * *",
			PauseTTL: 2 * time.Hour,
			Enabled:  true,
		},
		Server: ServerConfig{
			ListenAddr:       ":8080",
			AllowedWSOrigins: []string{"http://localhost:5173"},
		},
	}
}
