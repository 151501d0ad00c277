package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string        `yaml:"addr"`
	DataDir string        `yaml:"data_dir"`
	Preload []PreloadSpec `yaml:"preload,omitempty"`
}

// PreloadSpec names an asset to import into the store at boot. The
// format is taken from the file extension (.csm or .bcf).
type PreloadSpec struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

func LoadConfig(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("bcfd.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("bcfd.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Addr:    ":8080",
		DataDir: "./data",
	}
}

func (c *Config) Normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	for i := range c.Preload {
		c.Preload[i].Name = strings.TrimSpace(c.Preload[i].Name)
		c.Preload[i].Path = strings.TrimSpace(c.Preload[i].Path)
	}
}

func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Preload))
	for _, p := range c.Preload {
		if p.Name == "" {
			return fmt.Errorf("preload entry missing name")
		}
		if p.Path == "" {
			return fmt.Errorf("preload %q: missing path", p.Name)
		}
		switch ext := filepath.Ext(p.Path); ext {
		case ".csm", ".bcf":
		default:
			return fmt.Errorf("preload %q: unsupported extension %q", p.Name, ext)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("preload %q: duplicate name", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
