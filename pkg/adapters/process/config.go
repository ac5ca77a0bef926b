package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/fsmtask/pkg/params"
	"gopkg.in/yaml.v3"
)

// HookConfig describes an external command used as a guard or an action.
type HookConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	// Params maps parameter names to type names ("string", "number?", "[string]").
	Params  map[string]string `yaml:"params" json:"params"`
	Timeout string            `yaml:"timeout" json:"timeout"`
}

// ParamSchema parses Params into a params.Schema.
func (h HookConfig) ParamSchema() (params.Schema, error) {
	if len(h.Params) == 0 {
		return nil, nil
	}
	return params.ParseSchema(h.Params)
}

// TimeoutDuration parses Timeout. Zero means no limit beyond the caller's context.
func (h HookConfig) TimeoutDuration() (time.Duration, error) {
	if h.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(h.Timeout)
}

// ConfigFile represents the structure of hooks.yaml.
type ConfigFile struct {
	Guards  []HookConfig `yaml:"guards" json:"guards"`
	Actions []HookConfig `yaml:"actions" json:"actions"`
}

// LoadHooks reads a configuration file (YAML or JSON).
// A missing file yields an empty configuration.
func LoadHooks(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ConfigFile{}, nil
		}
		return nil, fmt.Errorf("failed to read hooks config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

func (c *ConfigFile) validate() error {
	check := func(kind string, hooks []HookConfig) error {
		for i, h := range hooks {
			if h.Name == "" {
				return fmt.Errorf("%s #%d: missing name", kind, i)
			}
			if h.Command == "" {
				return fmt.Errorf("%s %q: missing command", kind, h.Name)
			}
			if _, err := h.ParamSchema(); err != nil {
				return fmt.Errorf("%s %q: %w", kind, h.Name, err)
			}
			if _, err := h.TimeoutDuration(); err != nil {
				return fmt.Errorf("%s %q: invalid timeout: %w", kind, h.Name, err)
			}
		}
		return nil
	}
	if err := check("guard", c.Guards); err != nil {
		return err
	}
	return check("action", c.Actions)
}
