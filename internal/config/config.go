// Package config loads and validates the devsync configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTools is the set of collectors enabled when the config file does
// not name any.
var DefaultTools = []string{"vscode", "git", "ssh", "packages", "dotfiles"}

const (
	// DefaultDirName is the devsync state directory under $HOME.
	DefaultDirName = ".devsync"

	// DefaultFileName is the config file name under the state directory.
	DefaultFileName = "config.yaml"
)

// Config describes what gets collected into a sync package and how the
// backup directory is maintained.
type Config struct {
	BackupDir     string   `yaml:"backup_dir"`
	Tools         []string `yaml:"tools"`
	ExtraDotfiles []string `yaml:"extra_dotfiles,omitempty"`
	ExcludeFiles  []string `yaml:"exclude_files,omitempty"`
	MaxPackages   int      `yaml:"max_packages"`

	BeforeBackup  string `yaml:"before_backup,omitempty"`
	AfterBackup   string `yaml:"after_backup,omitempty"`
	BeforeRestore string `yaml:"before_restore,omitempty"`
	AfterRestore  string `yaml:"after_restore,omitempty"`
}

// DefaultPath returns ~/.devsync/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName, DefaultFileName), nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Tools:       append([]string(nil), DefaultTools...),
		MaxPackages: 5,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.BackupDir = filepath.Join(home, DefaultDirName, "backups")
	}
	return cfg
}

// Load reads the config file at path and returns the parsed config together
// with the raw bytes, which backup embeds into the sync package verbatim.
// A missing file is not an error: the defaults are returned and their YAML
// rendering stands in for the raw bytes.
func Load(path string) (*Config, []byte, error) {
	path = ExpandHome(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		raw, merr := yaml.Marshal(cfg)
		if merr != nil {
			return nil, nil, merr
		}
		return cfg, raw, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config (%s): %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, data, nil
}

func (c *Config) applyDefaults() {
	if len(c.Tools) == 0 {
		c.Tools = append([]string(nil), DefaultTools...)
	}
	if c.MaxPackages == 0 {
		c.MaxPackages = 5
	}
	if c.BackupDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.BackupDir = filepath.Join(home, DefaultDirName, "backups")
		}
	}
	c.BackupDir = ExpandHome(c.BackupDir)
}

// ToolEnabled reports whether the named collector is enabled.
func (c *Config) ToolEnabled(name string) bool {
	for _, t := range c.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// ExpandHome rewrites a leading "~/" (or a bare "~") to the current user's
// home directory. Paths without the prefix are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
