package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// YAMLConfig is the shape of the engine's config.yaml file.
type YAMLConfig struct {
	Engine  *EngineConfig      `yaml:"engine"`
	LLM     *LLMProviderConfig `yaml:"llm"`
	FSRS    *FSRSConfig        `yaml:"fsrs"`
	Sweeper *SweeperConfig     `yaml:"sweeper"`
	Server  *ServerConfig      `yaml:"server"`
}

// Initialize loads, merges, and validates configuration from configDir,
// falling back to built-in defaults for anything left unset.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"tutor_model", cfg.LLM.TutorModel,
		"max_target_points", cfg.Engine.MaxTargetPointsPerSession,
		"desired_retention", cfg.Engine.DesiredRetention)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	defaults := Defaults()

	path := filepath.Join(configDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("no config.yaml found, using built-in defaults", "path", path)
			return defaults, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var yc YAMLConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	merged := *defaults
	if yc.Engine != nil {
		if err := mergo.Merge(&merged.Engine, yc.Engine, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge engine config: %w", err)
		}
	}
	if yc.LLM != nil {
		if err := mergo.Merge(&merged.LLM, yc.LLM, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge llm config: %w", err)
		}
	}
	if yc.FSRS != nil {
		if err := mergo.Merge(&merged.FSRS, yc.FSRS, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge fsrs config: %w", err)
		}
	}
	if yc.Sweeper != nil {
		if err := mergo.Merge(&merged.Sweeper, yc.Sweeper, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge sweeper config: %w", err)
		}
	}
	if yc.Server != nil {
		if err := mergo.Merge(&merged.Server, yc.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge server config: %w", err)
		}
	}
	merged.configDir = configDir

	return &merged, nil
}
