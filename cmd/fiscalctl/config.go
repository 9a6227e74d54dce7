package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/fiscal/archive"
	archivefs "github.com/xraph/fiscal/archive/fs"
	archives3 "github.com/xraph/fiscal/archive/s3"
	"github.com/xraph/fiscal/chain"
	"github.com/xraph/fiscal/ledger"
)

// Config is the fiscalctl config file.
type Config struct {
	// Keys maps signing-key handles to hex or base64 key material.
	Keys         map[string]string `yaml:"keys"`
	KeyEnvPrefix string            `yaml:"key_env_prefix"`
	Archive      ArchiveConfig     `yaml:"archive"`
}

// ArchiveConfig selects the archive sink.
type ArchiveConfig struct {
	Driver string           `yaml:"driver"`
	Root   string           `yaml:"root"`
	S3     archives3.Config `yaml:"s3"`
}

func defaultConfig() *Config {
	return &Config{
		Keys:         map[string]string{},
		KeyEnvPrefix: "FISCAL_KEY_",
		Archive:      ArchiveConfig{Driver: "fs", Root: "archives"},
	}
}

// loadConfig reads path. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.KeyEnvPrefix == "" {
		cfg.KeyEnvPrefix = "FISCAL_KEY_"
	}
	return cfg, nil
}

// keyProvider resolves handles from the config file and then from the
// environment.
func (c *Config) keyProvider() chain.KeyProvider {
	env := chain.EnvKeys{Prefix: c.KeyEnvPrefix}
	return chain.KeyProviderFunc(func(ctx context.Context, handle string) ([]byte, error) {
		if raw, ok := c.Keys[handle]; ok {
			key, err := chain.DecodeKey(raw)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", handle, err)
			}
			return key, nil
		}
		return env.SigningKey(ctx, handle)
	})
}

// signer returns nil for an empty handle.
func (c *Config) signer(ctx context.Context, handle string) (*chain.Signer, error) {
	if handle == "" {
		return nil, nil
	}
	return chain.ResolveSigner(ctx, c.keyProvider(), handle)
}

type listingSink interface {
	archive.Sink
	archive.Lister
}

func (c *Config) openSink(ctx context.Context) (listingSink, error) {
	switch c.Archive.Driver {
	case "", "fs":
		return archivefs.New(c.Archive.Root)
	case "s3":
		s, err := archives3.Open(c.Archive.S3)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx, c.Archive.S3.Region); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
}

// readLedgerConfig parses a ledger configuration from YAML. Field names are
// the JSON names of ledger.Configuration.
func readLedgerConfig(path string) (ledger.Configuration, error) {
	var cfg ledger.Configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw == nil {
		return cfg, errors.New("empty ledger configuration")
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
