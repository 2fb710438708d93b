package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] for the JSON file source.
// Durations accept both Go duration strings ("30s") and nanosecond numbers.
type StructuredJSONConfig struct {
	App struct {
		AgentID       string `json:"agent_id"`
		AgentName     string `json:"agent_name"`
		AgentCode     string `json:"agent_code"`
		DeviceID      string `json:"device_id"`
		ActiveProject string `json:"active_project"`
		LogFile       string `json:"log_file"`
		LogLevel      string `json:"log_level"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			Path        string   `json:"path"`
			BusyTimeout Duration `json:"busy_timeout"`
		} `json:"db,omitempty"`
		QuotaBytes int64   `json:"quota_bytes"`
		WarnRatio  float64 `json:"warn_ratio"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`

	Adapter struct {
		HTTPAddress    string   `json:"http_address"`
		Token          string   `json:"token"`
		RequestTimeout Duration `json:"request_timeout"`
		RetryAttempts  int      `json:"retry_attempts"`
		RetryBackoff   Duration `json:"retry_backoff"`
		ProbePath      string   `json:"probe_path"`
	} `json:"adapter,omitempty"`

	Workers struct {
		SyncInterval     Duration `json:"sync_interval"`
		ConnectivityPoll Duration `json:"connectivity_poll"`
		Debounce         Duration `json:"debounce"`
		MaxParallel      int      `json:"max_parallel"`
	} `json:"workers,omitempty"`

	Transfer struct {
		Dir          string   `json:"dir"`
		MaxFileBytes int64    `json:"max_file_bytes"`
		QRSize       int      `json:"qr_size"`
		ScanInterval Duration `json:"scan_interval"`
	} `json:"transfer,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			AgentID:       jsonCfg.App.AgentID,
			AgentName:     jsonCfg.App.AgentName,
			AgentCode:     jsonCfg.App.AgentCode,
			DeviceID:      jsonCfg.App.DeviceID,
			ActiveProject: jsonCfg.App.ActiveProject,
			LogFile:       jsonCfg.App.LogFile,
			LogLevel:      jsonCfg.App.LogLevel,
		},
		Storage: Storage{
			DB: DB{
				Path:        jsonCfg.Storage.DB.Path,
				BusyTimeout: time.Duration(jsonCfg.Storage.DB.BusyTimeout),
			},
			QuotaBytes: jsonCfg.Storage.QuotaBytes,
			WarnRatio:  jsonCfg.Storage.WarnRatio,
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
		},
		Adapter: Adapter{
			HTTPAddress:    jsonCfg.Adapter.HTTPAddress,
			Token:          jsonCfg.Adapter.Token,
			RequestTimeout: time.Duration(jsonCfg.Adapter.RequestTimeout),
			RetryAttempts:  jsonCfg.Adapter.RetryAttempts,
			RetryBackoff:   time.Duration(jsonCfg.Adapter.RetryBackoff),
			ProbePath:      jsonCfg.Adapter.ProbePath,
		},
		Workers: Workers{
			SyncInterval:     time.Duration(jsonCfg.Workers.SyncInterval),
			ConnectivityPoll: time.Duration(jsonCfg.Workers.ConnectivityPoll),
			Debounce:         time.Duration(jsonCfg.Workers.Debounce),
			MaxParallel:      jsonCfg.Workers.MaxParallel,
		},
		Transfer: Transfer{
			Dir:          jsonCfg.Transfer.Dir,
			MaxFileBytes: jsonCfg.Transfer.MaxFileBytes,
			QRSize:       jsonCfg.Transfer.QRSize,
			ScanInterval: time.Duration(jsonCfg.Transfer.ScanInterval),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON unmarshaling from strings like "1h", "30s"
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
