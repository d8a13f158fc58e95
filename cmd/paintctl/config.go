package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk paintctl configuration.
//
//	worker: target/release/mcp-server-microsoft-paint
//	args: []
//	env:
//	  RUST_LOG: info
//	timeout: 30s
//	gracePeriod: 3s
type fileConfig struct {
	Worker      string            `yaml:"worker"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	Timeout     string            `yaml:"timeout"`
	GracePeriod string            `yaml:"gracePeriod"`
}

// runConfig is the resolved configuration after file + flag merging.
type runConfig struct {
	Worker      string
	Args        []string
	Env         map[string]string
	Timeout     time.Duration
	GracePeriod time.Duration
}

func loadConfig(path string) (*runConfig, error) {
	cfg := &runConfig{
		Timeout:     30 * time.Second,
		GracePeriod: 3 * time.Second,
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Worker = fc.Worker
	cfg.Args = fc.Args
	cfg.Env = fc.Env

	if fc.Timeout != "" {
		d, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("config timeout: %w", err)
		}

		cfg.Timeout = d
	}

	if fc.GracePeriod != "" {
		d, err := time.ParseDuration(fc.GracePeriod)
		if err != nil {
			return nil, fmt.Errorf("config gracePeriod: %w", err)
		}

		cfg.GracePeriod = d
	}

	return cfg, nil
}
