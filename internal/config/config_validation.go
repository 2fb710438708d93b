// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// validate checks that the final merged [StructuredConfig] satisfies all
// agent invariants before it is used at startup.
//
// Returns nil if the configuration is valid, or one of the ErrInvalid*Configs
// sentinels wrapped with a description of the offending field.
func (cfg *StructuredConfig) validate() error {
	if _, err := zerolog.ParseLevel(cfg.App.LogLevel); err != nil || cfg.App.LogLevel == "" {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidAppConfigs, cfg.App.LogLevel)
	}

	if cfg.Storage.DB.Path == "" || strings.Contains(cfg.Storage.DB.Path, ":memory:") {
		return fmt.Errorf("%w: database path must point to a file", ErrInvalidStorageConfigs)
	}
	if cfg.Storage.QuotaBytes <= 0 || cfg.Storage.WarnRatio <= 0 || cfg.Storage.WarnRatio > 1 {
		return fmt.Errorf("%w: quota must be positive and warn ratio in (0, 1]", ErrInvalidStorageConfigs)
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout <= 0 {
		return fmt.Errorf("%w: remote address and request timeout are required", ErrInvalidAdapterConfigs)
	}
	if cfg.Adapter.RetryAttempts < 1 || cfg.Adapter.RetryBackoff < 0 {
		return fmt.Errorf("%w: at least one attempt and a non-negative backoff are required", ErrInvalidAdapterConfigs)
	}

	if cfg.Workers.SyncInterval <= 0 || cfg.Workers.ConnectivityPoll <= 0 || cfg.Workers.MaxParallel < 1 {
		return fmt.Errorf("%w: intervals and parallelism must be positive", ErrInvalidWorkerConfigs)
	}

	if cfg.Transfer.MaxFileBytes <= 0 || cfg.Transfer.QRSize <= 0 || cfg.Transfer.ScanInterval <= 0 {
		return fmt.Errorf("%w: transfer limits must be positive", ErrInvalidTransferConfigs)
	}

	return nil
}
