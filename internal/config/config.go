// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"time"
)

// StructuredConfig is the top-level configuration container of the field
// sync agent. It aggregates all sub-configurations and is populated by
// merging values from environment variables, command-line flags, an optional
// JSON file and finally the built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env:       direct environment variable name for scalar fields.
type StructuredConfig struct {
	// App holds the identity of the operator and device stamped into the
	// metadata of every submission created by this agent.
	App App `envPrefix:"APP_"`

	// Storage holds configuration for the local SQLite store and the
	// capacity warning thresholds.
	Storage Storage `envPrefix:"STORAGE_"`

	// Server holds the address and timeout of the local agent API.
	Server Server `envPrefix:"SERVER_"`

	// Adapter holds the remote record store endpoint and the retry policy
	// applied to every remote call.
	Adapter Adapter `envPrefix:"ADAPTER_"`

	// Workers holds the schedule of the background connectivity watcher and
	// of periodic sync runs.
	Workers Workers `envPrefix:"WORKERS_"`

	// Transfer holds the limits and output locations of the secure transfer
	// channel.
	Transfer Transfer `envPrefix:"TRANSFER_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the --config flag.
	JSONFilePath string `env:"CONFIG"`
}

// App holds agent identity settings.
type App struct {
	// AgentID, AgentName and AgentCode identify the operator collecting
	// records on this device.
	// Env: APP_AGENT_ID, APP_AGENT_NAME, APP_AGENT_CODE
	AgentID   string `env:"AGENT_ID"`
	AgentName string `env:"AGENT_NAME"`
	AgentCode string `env:"AGENT_CODE"`

	// DeviceID identifies the device. Defaults to the host name.
	// Env: APP_DEVICE_ID
	DeviceID string `env:"DEVICE_ID"`

	// ActiveProject is the project used when a command or request does not
	// name one, and the receiving project of transfer imports.
	// Env: APP_ACTIVE_PROJECT
	ActiveProject string `env:"ACTIVE_PROJECT"`

	// Version is exposed via the /api/version endpoint.
	// Env: APP_VERSION
	Version string `env:"VERSION"`

	// LogFile is the path of the agent log file. Empty means a "logs" file
	// next to the executable.
	// Env: APP_LOG_FILE
	LogFile string `env:"LOG_FILE"`

	// LogLevel is the lowest zerolog level written: trace, debug, info,
	// warn or error.
	// Env: APP_LOG_LEVEL
	LogLevel string `env:"LOG_LEVEL"`
}

// Storage groups the local persistence settings.
type Storage struct {
	// DB holds the SQLite connection settings.
	DB DB `envPrefix:"DB_"`

	// QuotaBytes is the storage budget the agent may use on the device.
	// Env: STORAGE_QUOTA_BYTES
	QuotaBytes int64 `env:"QUOTA_BYTES"`

	// WarnRatio is the share of QuotaBytes at which a capacity warning is
	// raised, in (0, 1].
	// Env: STORAGE_WARN_RATIO
	WarnRatio float64 `env:"WARN_RATIO"`
}

// DB holds SQLite connection settings.
type DB struct {
	// Path is the database file. It is created when missing.
	// Env: STORAGE_DB_PATH
	Path string `env:"PATH"`

	// BusyTimeout bounds how long a writer waits for the database lock.
	// Env: STORAGE_DB_BUSY_TIMEOUT
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT"`
}

// Server holds settings of the local agent API.
type Server struct {
	// HTTPAddress is the TCP address the API listens on, "host:port".
	// Env: SERVER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// RequestTimeout bounds a single inbound request.
	// Env: SERVER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Adapter holds settings of the remote record store adapter.
type Adapter struct {
	// HTTPAddress is the base URL of the remote record store.
	// Env: ADAPTER_ADDRESS
	HTTPAddress string `env:"ADDRESS"`

	// Token is the bearer token sent with every remote call.
	// Env: ADAPTER_TOKEN
	Token string `env:"TOKEN"`

	// RequestTimeout bounds a single remote call. A timeout is treated as a
	// retryable network failure.
	// Env: ADAPTER_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// RetryAttempts is the total number of attempts per remote call.
	// Env: ADAPTER_RETRY_ATTEMPTS
	RetryAttempts int `env:"RETRY_ATTEMPTS"`

	// RetryBackoff is the fixed pause between attempts.
	// Env: ADAPTER_RETRY_BACKOFF
	RetryBackoff time.Duration `env:"RETRY_BACKOFF"`

	// ProbePath is requested by the connectivity probe.
	// Env: ADAPTER_PROBE_PATH
	ProbePath string `env:"PROBE_PATH"`
}

// Workers holds background job settings.
type Workers struct {
	// SyncInterval is the period of automatic sync runs while online.
	// Env: WORKERS_SYNC_INTERVAL
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`

	// ConnectivityPoll is how often the watcher probes connectivity.
	// Env: WORKERS_CONNECTIVITY_POLL
	ConnectivityPoll time.Duration `env:"CONNECTIVITY_POLL"`

	// Debounce is how long connectivity must hold after a regain edge before
	// the automatic sync starts.
	// Env: WORKERS_DEBOUNCE
	Debounce time.Duration `env:"DEBOUNCE"`

	// MaxParallel limits how many projects sync at the same time.
	// Env: WORKERS_MAX_PARALLEL
	MaxParallel int `env:"MAX_PARALLEL"`
}

// Transfer holds secure transfer channel settings.
type Transfer struct {
	// Dir is where exported payload files and QR images are written.
	// Env: TRANSFER_DIR
	Dir string `env:"DIR"`

	// MaxFileBytes is the largest payload accepted for the file medium.
	// Env: TRANSFER_MAX_FILE_BYTES
	MaxFileBytes int64 `env:"MAX_FILE_BYTES"`

	// QRSize is the edge length in pixels of rendered QR images.
	// Env: TRANSFER_QR_SIZE
	QRSize int `env:"QR_SIZE"`

	// ScanInterval is the polling period of the optical scanner.
	// Env: TRANSFER_SCAN_INTERVAL
	ScanInterval time.Duration `env:"SCAN_INTERVAL"`
}

// GetStructuredConfig loads, merges, and validates the agent configuration.
// Sources are merged so that earlier ones win for every non-zero field:
//  1. Environment variables
//  2. Command-line flags (flagCfg, may be nil)
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
func GetStructuredConfig(flagCfg *StructuredConfig) (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags(flagCfg).
		withJSON().
		withDefaults().
		build()
}
