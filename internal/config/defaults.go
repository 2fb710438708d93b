// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"os"
	"time"
)

// Default values applied to every field left unset by flags, env and JSON.
const (
	DefaultLogLevel         = "info"
	DefaultDBPath           = "fieldsync.db"
	DefaultBusyTimeout      = 5 * time.Second
	DefaultQuotaBytes       = 512 << 20
	DefaultWarnRatio        = 0.9
	DefaultHTTPAddress      = "127.0.0.1:8787"
	DefaultServerTimeout    = 30 * time.Second
	DefaultRemoteTimeout    = 15 * time.Second
	DefaultRetryAttempts    = 2
	DefaultRetryBackoff     = 500 * time.Millisecond
	DefaultProbePath        = "/healthz"
	DefaultSyncInterval     = 5 * time.Minute
	DefaultConnectivityPoll = 10 * time.Second
	DefaultDebounce         = 5 * time.Second
	DefaultMaxParallel      = 4
	DefaultTransferDir      = "."
	DefaultMaxFileBytes     = 32 << 20
	DefaultQRSize           = 768
	DefaultScanInterval     = 200 * time.Millisecond
)

func defaults() *StructuredConfig {
	deviceID, _ := os.Hostname()

	return &StructuredConfig{
		App: App{
			DeviceID: deviceID,
			LogLevel: DefaultLogLevel,
		},
		Storage: Storage{
			DB: DB{
				Path:        DefaultDBPath,
				BusyTimeout: DefaultBusyTimeout,
			},
			QuotaBytes: DefaultQuotaBytes,
			WarnRatio:  DefaultWarnRatio,
		},
		Server: Server{
			HTTPAddress:    DefaultHTTPAddress,
			RequestTimeout: DefaultServerTimeout,
		},
		Adapter: Adapter{
			RequestTimeout: DefaultRemoteTimeout,
			RetryAttempts:  DefaultRetryAttempts,
			RetryBackoff:   DefaultRetryBackoff,
			ProbePath:      DefaultProbePath,
		},
		Workers: Workers{
			SyncInterval:     DefaultSyncInterval,
			ConnectivityPoll: DefaultConnectivityPoll,
			Debounce:         DefaultDebounce,
			MaxParallel:      DefaultMaxParallel,
		},
		Transfer: Transfer{
			Dir:          DefaultTransferDir,
			MaxFileBytes: DefaultMaxFileBytes,
			QRSize:       DefaultQRSize,
			ScanInterval: DefaultScanInterval,
		},
	}
}
