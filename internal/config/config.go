// Package config loads the per-project configuration: config.yaml
// (vector index mode, budget/safety overrides) and constitution.yaml
// (the authoritative L0 identity source), per §4.N. Env var overrides
// are layered on top via internal/env, grounded in the teacher's go.mod
// dependency on spf13/viper for exactly this layering pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kagent-dev/memoryanchor/internal/vectorindex/factory"
)

// ConstitutionItem is one L0 entry sourced from constitution.yaml.
type ConstitutionItem struct {
	ID       string `yaml:"id"`
	Content  string `yaml:"content"`
	Category string `yaml:"category,omitempty"`
}

// Constitution is the authoritative identity-layer source of truth.
type Constitution struct {
	Project string             `yaml:"project"`
	Items   []ConstitutionItem `yaml:"items"`
}

// LoadConstitution reads and parses constitution.yaml. A missing file is
// not an error: it returns an empty Constitution, matching "no identity
// configured yet" for a freshly initialized project.
func LoadConstitution(path string) (*Constitution, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Constitution{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read constitution: %w", err)
	}
	var c Constitution
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse constitution: %w", err)
	}
	return &c, nil
}

// ProjectConfig is the project-local config.yaml shape.
type ProjectConfig struct {
	ProjectID         string `yaml:"project_id"`
	VectorIndexMode   string `yaml:"vector_index_mode"`
	VectorIndexURL    string `yaml:"vector_index_url,omitempty"`
	MaxConstitutionN  int    `yaml:"max_constitution_items,omitempty"`
}

// LoadProjectConfig reads config.yaml, falling back to zero-value
// defaults (callers apply env-driven defaults on top) if absent.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ProjectConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c ProjectConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// VectorIndexConfig translates a ProjectConfig (layered with env
// defaults by the caller) into a factory.Config.
func (c *ProjectConfig) VectorIndexConfig(projectDir string, dimension int) factory.Config {
	mode := factory.ModeEmbedded
	if c.VectorIndexMode == string(factory.ModeRemote) {
		mode = factory.ModeRemote
	}
	return factory.Config{
		Mode:        mode,
		EmbeddedDir: filepath.Join(projectDir, ".vectors"),
		RemoteDSN:   c.VectorIndexURL,
		Dimension:   dimension,
	}
}

// ProjectDir returns the per-project directory layout root: config.yaml,
// constitution.yaml, constitution_changes.db, pending_memory.db, and
// .vectors/ all live under this path, per §6.
type ProjectDir struct {
	Root string
}

func (p ProjectDir) ConfigPath() string       { return filepath.Join(p.Root, "config.yaml") }
func (p ProjectDir) ConstitutionPath() string { return filepath.Join(p.Root, "constitution.yaml") }
func (p ProjectDir) IdentityDBPath() string   { return filepath.Join(p.Root, "constitution_changes.db") }
func (p ProjectDir) PendingDBPath() string    { return filepath.Join(p.Root, "pending_memory.db") }
func (p ProjectDir) VectorsDir() string       { return filepath.Join(p.Root, ".vectors") }
func (p ProjectDir) OperationsDir() string    { return filepath.Join(p.Root, ".ai", "operations") }

// Init scaffolds a fresh project directory with empty config and
// constitution files, per the `init` CLI subcommand (§4.O).
func Init(root, projectID string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	p := ProjectDir{Root: root}

	cfg := ProjectConfig{ProjectID: projectID, VectorIndexMode: "embedded"}
	cfgBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p.ConfigPath()); os.IsNotExist(err) {
		if err := os.WriteFile(p.ConfigPath(), cfgBytes, 0o644); err != nil {
			return err
		}
	}

	constitution := Constitution{Project: projectID}
	constBytes, err := yaml.Marshal(constitution)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p.ConstitutionPath()); os.IsNotExist(err) {
		if err := os.WriteFile(p.ConstitutionPath(), constBytes, 0o644); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(p.VectorsDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(p.OperationsDir(), 0o755)
}
