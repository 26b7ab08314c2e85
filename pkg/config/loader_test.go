package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_NoConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Initialize(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, Defaults().Engine, cfg.Engine)
	assert.Equal(t, dir, cfg.ConfigDir())
}

func TestInitialize_UserYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
engine:
  max_target_points_per_session: 5
  evaluator_confidence_threshold: 0.8
llm:
  tutor_model: custom-model
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.MaxTargetPointsPerSession)
	assert.Equal(t, 0.8, cfg.Engine.EvaluatorConfidenceThreshold)
	assert.Equal(t, "custom-model", cfg.LLM.TutorModel)
	// Unset fields keep their built-in default.
	assert.Equal(t, Defaults().Engine.RabbitholeEnterThreshold, cfg.Engine.RabbitholeEnterThreshold)
	assert.Equal(t, Defaults().LLM.EvaluatorModel, cfg.LLM.EvaluatorModel)
}

func TestInitialize_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("engine: [this is not a map"), 0o644))

	_, err := Initialize(context.Background(), dir)

	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestInitialize_InvalidValuesFailValidation(t *testing.T) {
	// mergo's default WithOverride skips zero-valued YAML fields, so this
	// exercises an out-of-range (not zero) value to actually reach the
	// validator.
	dir := t.TempDir()
	yaml := `
engine:
  evaluator_confidence_threshold: 2.5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	_, err := Initialize(context.Background(), dir)

	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestExpandEnv_InConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RECALL_TUTOR_MODEL", "claude-opus")
	yaml := `
llm:
  tutor_model: ${RECALL_TUTOR_MODEL}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Initialize(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, "claude-opus", cfg.LLM.TutorModel)
}
