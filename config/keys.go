// Copyright (C) 2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package config

const (
	// Command line option keys
	ConfigFileKey = "config-file"
	VersionKey    = "version"
	HelpKey       = "help"

	// Top-level configuration keys
	LogLevelKey              = "log-level"
	APIPortKey               = "api-port"
	MetricsPortKey           = "metrics-port"
	DatabaseURLKey           = "database-url"
	VotersKey                = "voters"
	RejectDuplicateVotersKey = "reject-duplicate-voters"
	VoterKeysFileKey         = "voter-keys-file"
	RequireAttestationKey    = "require-attestation"
	BadgeCacheSizeKey        = "badge-cache-size"
	BadgeURIPrefixKey        = "badge-uri-prefix"
)

const (
	defaultLogLevel    = "info"
	defaultAPIPort     = uint16(8080)
	defaultMetricsPort = uint16(8081)

	// DefaultBadgeCacheSize is the default badge read cache capacity
	DefaultBadgeCacheSize = 1024
)
