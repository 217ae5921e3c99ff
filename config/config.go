// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the badged daemon configuration.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/luxfi/ids"
)

// Config is the daemon configuration. Values are populated by viper with
// flags taking precedence over the config file, and the config file over
// environment variables.
type Config struct {
	LogLevel              string   `mapstructure:"log-level"`
	APIPort               uint16   `mapstructure:"api-port"`
	MetricsPort           uint16   `mapstructure:"metrics-port"`
	DatabaseURL           string   `mapstructure:"database-url"`
	Voters                []string `mapstructure:"voters"`
	RejectDuplicateVoters bool     `mapstructure:"reject-duplicate-voters"`
	VoterKeysFile         string   `mapstructure:"voter-keys-file"`
	RequireAttestation    bool     `mapstructure:"require-attestation"`
	BadgeCacheSize        int      `mapstructure:"badge-cache-size"`
	BadgeURIPrefix        string   `mapstructure:"badge-uri-prefix"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if len(c.Voters) == 0 {
		return fmt.Errorf("no voters configured")
	}
	if _, err := c.ParseVoters(); err != nil {
		return err
	}
	if c.BadgeCacheSize <= 0 {
		return fmt.Errorf("badge cache size must be positive, got %d", c.BadgeCacheSize)
	}
	if c.RequireAttestation && c.VoterKeysFile == "" {
		return fmt.Errorf("%s requires %s to be set", RequireAttestationKey, VoterKeysFileKey)
	}
	if c.DatabaseURL != "" {
		u, err := url.Parse(c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", DatabaseURLKey, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "postgres", "postgresql":
		default:
			return fmt.Errorf("unsupported %s scheme: %s", DatabaseURLKey, u.Scheme)
		}
	}
	return nil
}

// ParseVoters decodes the configured voter identities, preserving order.
func (c *Config) ParseVoters() ([]ids.ShortID, error) {
	voters := make([]ids.ShortID, len(c.Voters))
	for i, s := range c.Voters {
		voter, err := ids.ShortFromString(s)
		if err != nil {
			return nil, fmt.Errorf("malformed voter %q at index %d: %w", s, i, err)
		}
		voters[i] = voter
	}
	return voters, nil
}

// LoadVoterKeys reads the voter key file: a JSON object mapping voter
// identity to hex-encoded compressed BLS public key.
func (c *Config) LoadVoterKeys() (map[ids.ShortID][]byte, error) {
	raw, err := os.ReadFile(c.VoterKeysFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read voter key file: %w", err)
	}

	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("malformed voter key file: %w", err)
	}

	keys := make(map[ids.ShortID][]byte, len(entries))
	for voterStr, pkHex := range entries {
		voter, err := ids.ShortFromString(voterStr)
		if err != nil {
			return nil, fmt.Errorf("malformed voter %q in key file: %w", voterStr, err)
		}
		pkBytes, err := hex.DecodeString(strings.TrimPrefix(pkHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("malformed public key for voter %q: %w", voterStr, err)
		}
		keys[voter] = pkBytes
	}
	return keys, nil
}

// DebugString returns a human-friendly configuration string with masked
// secrets.
func (c *Config) DebugString() string {
	return fmt.Sprintf(
		"log-level=%s api-port=%d metrics-port=%d voters=%d db=%s attestation=%t",
		c.LogLevel,
		c.APIPort,
		c.MetricsPort,
		len(c.Voters),
		maskDSN(c.DatabaseURL),
		c.RequireAttestation,
	)
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return "none"
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if u.User != nil {
			u.User = url.User(u.User.Username())
		}
		return u.String()
	}
	return "masked"
}
