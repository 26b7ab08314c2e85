package config

import "fmt"

// Validator runs the engine's configuration checks section by section
// (engine, llm, fsrs, sweeper, server), stopping at the first failure
// with a clear message.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs every check in order.
func (v *Validator) Validate() error {
	if err := v.validateEngine(); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}
	if err := v.validateLLM(); err != nil {
		return fmt.Errorf("llm validation failed: %w", err)
	}
	if err := v.validateFSRS(); err != nil {
		return fmt.Errorf("fsrs validation failed: %w", err)
	}
	if err := v.validateSweeper(); err != nil {
		return fmt.Errorf("sweeper validation failed: %w", err)
	}
	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateEngine() error {
	e := v.cfg.Engine
	if e.MaxTargetPointsPerSession < 1 {
		return NewValidationError("max_target_points_per_session", fmt.Errorf("must be at least 1, got %d", e.MaxTargetPointsPerSession))
	}
	if e.EvaluatorConfidenceThreshold < 0 || e.EvaluatorConfidenceThreshold > 1 {
		return NewValidationError("evaluator_confidence_threshold", fmt.Errorf("must be in [0,1], got %v", e.EvaluatorConfidenceThreshold))
	}
	if e.RabbitholeEnterThreshold < 0 || e.RabbitholeEnterThreshold > 1 {
		return NewValidationError("rabbithole_enter_threshold", fmt.Errorf("must be in [0,1], got %v", e.RabbitholeEnterThreshold))
	}
	if e.RabbitholeReturnThreshold < 0 || e.RabbitholeReturnThreshold > 1 {
		return NewValidationError("rabbithole_return_threshold", fmt.Errorf("must be in [0,1], got %v", e.RabbitholeReturnThreshold))
	}
	if e.LLMTimeoutSeconds < 1 {
		return NewValidationError("llm_timeout_seconds", fmt.Errorf("must be at least 1, got %d", e.LLMTimeoutSeconds))
	}
	if e.DesiredRetention <= 0 || e.DesiredRetention >= 1 {
		return NewValidationError("desired_retention", fmt.Errorf("must be in (0,1), got %v", e.DesiredRetention))
	}
	if e.EvaluatorRecentMessageWindow < 1 {
		return NewValidationError("evaluator_recent_message_window", fmt.Errorf("must be at least 1, got %d", e.EvaluatorRecentMessageWindow))
	}
	if e.StallThresholdMs < 0 {
		return NewValidationError("stall_threshold_ms", fmt.Errorf("must be non-negative, got %d", e.StallThresholdMs))
	}
	return nil
}

func (v *Validator) validateLLM() error {
	l := v.cfg.LLM
	if l.TutorModel == "" {
		return NewValidationError("llm.tutor_model", ErrMissingRequiredField)
	}
	if l.EvaluatorModel == "" {
		return NewValidationError("llm.evaluator_model", ErrMissingRequiredField)
	}
	if l.TranscriptionModel == "" {
		return NewValidationError("llm.transcription_model", ErrMissingRequiredField)
	}
	if !l.UseDirectAnthropic && l.ServiceAddr == "" {
		return NewValidationError("llm.service_addr", fmt.Errorf("required unless use_direct_anthropic is set"))
	}
	if l.UseDirectAnthropic && l.AnthropicAPIKeyEnv == "" {
		return NewValidationError("llm.anthropic_api_key_env", fmt.Errorf("required when use_direct_anthropic is set"))
	}
	return nil
}

func (v *Validator) validateFSRS() error {
	f := v.cfg.FSRS
	for i, w := range f.Weights {
		if w < 0 {
			return NewValidationError(fmt.Sprintf("fsrs.weights[%d]", i), fmt.Errorf("must be non-negative, got %v", w))
		}
	}
	if f.DesiredRetention <= 0 || f.DesiredRetention >= 1 {
		return NewValidationError("fsrs.desired_retention", fmt.Errorf("must be in (0,1), got %v", f.DesiredRetention))
	}
	return nil
}

func (v *Validator) validateSweeper() error {
	s := v.cfg.Sweeper
	if !s.Enabled {
		return nil
	}
	if s.Schedule == "" {
		return NewValidationError("sweeper.schedule", ErrMissingRequiredField)
	}
	if s.PauseTTL <= 0 {
		return NewValidationError("sweeper.pause_ttl", fmt.Errorf("must be positive, got %v", s.PauseTTL))
	}
	return nil
}

func (v *Validator) validateServer() error {
	if v.cfg.Server.ListenAddr == "" {
		return NewValidationError("server.listen_addr", ErrMissingRequiredField)
	}
	return nil
}

// Validate is a convenience wrapper for NewValidator(cfg).Validate().
func Validate(cfg *Config) error {
	return NewValidator(cfg).Validate()
}
