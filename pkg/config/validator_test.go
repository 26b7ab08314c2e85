package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEngine(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EngineConfig)
		wantErr bool
		errMsg  string
	}{
		{name: "valid defaults", mutate: func(e *EngineConfig) {}, wantErr: false},
		{
			name:    "zero max target points",
			mutate:  func(e *EngineConfig) { e.MaxTargetPointsPerSession = 0 },
			wantErr: true,
			errMsg:  "max_target_points_per_session",
		},
		{
			name:    "confidence threshold above 1",
			mutate:  func(e *EngineConfig) { e.EvaluatorConfidenceThreshold = 1.5 },
			wantErr: true,
			errMsg:  "evaluator_confidence_threshold",
		},
		{
			name:    "desired retention at boundary 1 is rejected",
			mutate:  func(e *EngineConfig) { e.DesiredRetention = 1 },
			wantErr: true,
			errMsg:  "desired_retention",
		},
		{
			name:    "negative stall threshold",
			mutate:  func(e *EngineConfig) { e.StallThresholdMs = -1 },
			wantErr: true,
			errMsg:  "stall_threshold_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg.Engine)

			err := NewValidator(cfg).validateEngine()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLLM(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LLMProviderConfig)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(l *LLMProviderConfig) {}, wantErr: false},
		{name: "missing tutor model", mutate: func(l *LLMProviderConfig) { l.TutorModel = "" }, wantErr: true},
		{
			name: "direct anthropic without api key env",
			mutate: func(l *LLMProviderConfig) {
				l.UseDirectAnthropic = true
				l.AnthropicAPIKeyEnv = ""
			},
			wantErr: true,
		},
		{
			name: "direct anthropic with api key env is valid even with empty service addr",
			mutate: func(l *LLMProviderConfig) {
				l.UseDirectAnthropic = true
				l.AnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"
				l.ServiceAddr = ""
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg.LLM)

			err := NewValidator(cfg).validateLLM()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFSRS_NegativeWeightRejected(t *testing.T) {
	cfg := Defaults()
	cfg.FSRS.Weights[3] = -1

	err := NewValidator(cfg).validateFSRS()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "weights[3]")
}

func TestValidate_DefaultsPassWholesale(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}
