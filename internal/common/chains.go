package common

import (
	"fmt"
	"os"
	"path/filepath"

	"house-ledger-go/internal/models"

	"gopkg.in/yaml.v2"
)

type ChainConfig struct {
	Currency  string `yaml:"currency"`
	StreamURL string `yaml:"stream_url"`
}

type ChainsConfig struct {
	Chains []ChainConfig `yaml:"chains"`
}

// LoadChainConfig reads the chains.yaml manifest that maps each supported
// currency to its treasury event stream endpoint.
func LoadChainConfig(chainsFile string) ([]ChainConfig, error) {
	var chainsPath string
	if filepath.IsAbs(chainsFile) {
		chainsPath = chainsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		chainsPath = filepath.Join(wd, chainsFile)
	}

	data, err := os.ReadFile(chainsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", chainsFile, err)
	}

	var config ChainsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", chainsFile, err)
	}

	for i, c := range config.Chains {
		if c.Currency == "" {
			return nil, fmt.Errorf("chain at index %d missing currency", i)
		}
		if c.StreamURL == "" {
			return nil, fmt.Errorf("chain at index %d missing stream_url", i)
		}
	}

	return config.Chains, nil
}

// LoadChainStreams converts the manifest into listener subscriptions.
func LoadChainStreams(chainsFile string) ([]models.ChainStream, error) {
	chains, err := LoadChainConfig(chainsFile)
	if err != nil {
		return nil, err
	}

	streams := make([]models.ChainStream, len(chains))
	for i, c := range chains {
		streams[i] = models.ChainStream{Currency: c.Currency, StreamURL: c.StreamURL}
	}

	return streams, nil
}
