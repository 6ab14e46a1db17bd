package pamedit

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where LoadConfig looks when PAMEDIT_CONFIG is not
// set and no explicit path is given.
const DefaultConfigPath = "/etc/pamedit.yaml"

// Config holds the tool's settings. All fields are optional; zero values
// fall back to the built-in defaults.
type Config struct {
	PamDir       string `yaml:"pam_dir"`
	SandboxDir   string `yaml:"sandbox_dir"`
	BackupSuffix string `yaml:"backup_suffix"`
}

// WithDefaults fills unset fields with the built-in defaults.
func (c Config) WithDefaults() Config {
	if c.PamDir == "" {
		c.PamDir = DefaultSystemDir
	}
	if c.SandboxDir == "" {
		c.SandboxDir = DefaultSandboxDir
	}
	if c.BackupSuffix == "" {
		c.BackupSuffix = DefaultBackupSuffix
	}
	return c
}

// LoadConfig reads the YAML config file at path. An empty path checks
// PAMEDIT_CONFIG, then DefaultConfigPath. A missing file is not an error;
// defaults apply. The PAMEDIT_PAM_DIR, PAMEDIT_SANDBOX_DIR, and
// PAMEDIT_BACKUP_SUFFIX environment variables override the file.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("PAMEDIT_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file; defaults apply.
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if v := os.Getenv("PAMEDIT_PAM_DIR"); v != "" {
		cfg.PamDir = v
	}
	if v := os.Getenv("PAMEDIT_SANDBOX_DIR"); v != "" {
		cfg.SandboxDir = v
	}
	if v := os.Getenv("PAMEDIT_BACKUP_SUFFIX"); v != "" {
		cfg.BackupSuffix = v
	}

	return cfg.WithDefaults(), nil
}
