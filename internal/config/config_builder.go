package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

// configBuilder layers broker configuration sources in precedence order:
// environment variables win over flags, flags win over the JSON file.
// Source errors are collected and surface together from build.
type configBuilder struct {
	layers []*StructuredConfig
	err    error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{
		layers: make([]*StructuredConfig, 0, 3),
	}
}

func (b *configBuilder) build() (*StructuredConfig, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error collecting broker configs: %w", b.err)
	}

	merged := new(StructuredConfig)
	for _, layer := range b.layers {
		if err := mergo.Merge(merged, layer); err != nil {
			return nil, fmt.Errorf("error merging config layers: %w", err)
		}
	}

	merged.applyDefaults()

	return merged, merged.validate()
}

func (b *configBuilder) withEnv() *configBuilder {
	envCfg := new(StructuredConfig)
	if err := env.Parse(envCfg); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error reading env configs: %w", err))
		return b
	}

	b.layers = append(b.layers, envCfg)
	return b
}

func (b *configBuilder) withFlags() *configBuilder {
	b.layers = append(b.layers, ParseFlags())
	return b
}

// withJSON loads the config file if any earlier layer named one. When several
// layers do, the last non-empty path wins.
func (b *configBuilder) withJSON() *configBuilder {
	var jsonPath string
	for _, layer := range b.layers {
		if layer.JSONFilePath != "" {
			jsonPath = layer.JSONFilePath
		}
	}
	if jsonPath == "" {
		return b
	}

	jsonCfg, err := parseJSON(jsonPath)
	if err != nil {
		b.err = errors.Join(b.err, err)
		return b
	}

	b.layers = append(b.layers, jsonCfg)
	return b
}
