// Package common provides shared utilities for the matchnet CLI commands.
//
// This package contains helper functions used across the standalone service
// binaries (party, dealer, localsim) to reduce code duplication:
//
//   - Key loading and generation for Ed25519 signing keys
//   - Party configuration loading from YAML files
//   - Peer readiness polling before a run is started
package common

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/privmatch/matchnet/crypto"
	"github.com/privmatch/matchnet/services"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// DatasetConfig locates this party's identifier column.
type DatasetConfig struct {
	Path   string `yaml:"path"`
	Column string `yaml:"column"`
}

// PartyFileConfig is the YAML configuration of one party binary.
type PartyFileConfig struct {
	PartyIndex    int    `yaml:"party_index"`
	RunID         string `yaml:"run_id"`
	PeerURL       string `yaml:"peer_url"`
	DealerURL     string `yaml:"dealer_url"`
	PeerPublicKey string `yaml:"peer_public_key"`

	Capacity      int `yaml:"capacity"`
	DeclaredBound int `yaml:"declared_bound"`
	Margin        int `yaml:"margin"`
	TripleBatch   int `yaml:"triple_batch"`

	Dataset  DatasetConfig            `yaml:"dataset"`
	Postgres *services.PostgresConfig `yaml:"postgres"`
}

// LoadPartyConfig reads and parses a party YAML configuration file.
func LoadPartyConfig(path string) (*PartyFileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &PartyFileConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Dataset.Path == "" {
		return nil, fmt.Errorf("config is missing dataset.path")
	}
	return cfg, nil
}

// WaitForService polls a service's /health endpoint until it answers or the
// context expires. Parties use it so start order does not matter.
func WaitForService(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", baseURL, ctx.Err())
		}
	}
}
