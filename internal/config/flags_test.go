package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetAddress_String(t *testing.T) {
	tests := []struct {
		name     string
		addr     NetAddress
		expected string
	}{
		{name: "empty address", addr: NetAddress{}, expected: ""},
		{name: "localhost with port", addr: NetAddress{Host: "localhost", Port: 8080}, expected: "localhost:8080"},
		{name: "IP address with port", addr: NetAddress{Host: "127.0.0.1", Port: 9090}, expected: "127.0.0.1:9090"},
		{name: "only port no host", addr: NetAddress{Port: 8080}, expected: ":8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.addr.String())
		})
	}
}

func TestNetAddress_Set(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expectError  bool
		errorMsg     string
		expectedAddr NetAddress
	}{
		{
			name:         "valid localhost",
			input:        "localhost:8080",
			expectedAddr: NetAddress{Host: "localhost", Port: 8080},
		},
		{
			name:         "valid IPv4",
			input:        "127.0.0.1:9090",
			expectedAddr: NetAddress{Host: "127.0.0.1", Port: 9090},
		},
		{
			name:        "missing colon",
			input:       "localhost8080",
			expectError: true,
			errorMsg:    "need address in a form `host:port`",
		},
		{
			name:        "non-numeric port",
			input:       "localhost:abc",
			expectError: true,
			errorMsg:    "invalid syntax",
		},
		{
			name:        "zero port",
			input:       "localhost:0",
			expectError: true,
			errorMsg:    "port number must be in range",
		},
		{
			name:        "port out of range",
			input:       "localhost:70000",
			expectError: true,
			errorMsg:    "port number must be in range",
		},
		{
			name:        "invalid IP address",
			input:       "invalid.host:8080",
			expectError: true,
			errorMsg:    "incorrect IP-address provided",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := &NetAddress{}
			err := addr.Set(tt.input)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAddr, *addr)
		})
	}
}

func TestBindFlags(t *testing.T) {
	// Arrange
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)

	// Act
	err := fs.Parse([]string{
		"-a", "127.0.0.1:9000",
		"--db", "/tmp/agent.db",
		"--remote", "https://records.example",
		"-p", "proj-1",
		"--agent-name", "Amina",
		"--retry-attempts", "4",
		"--request-timeout", "3s",
		"-c", "/etc/fieldsync.json",
		"--log-level", "debug",
	})
	require.NoError(t, err)
	cfg := flags.Config()

	// Assert
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.HTTPAddress)
	assert.Equal(t, "/tmp/agent.db", cfg.Storage.DB.Path)
	assert.Equal(t, "https://records.example", cfg.Adapter.HTTPAddress)
	assert.Equal(t, "proj-1", cfg.App.ActiveProject)
	assert.Equal(t, "Amina", cfg.App.AgentName)
	assert.Equal(t, 4, cfg.Adapter.RetryAttempts)
	assert.Equal(t, 3*time.Second, cfg.Adapter.RequestTimeout)
	assert.Equal(t, "/etc/fieldsync.json", cfg.JSONFilePath)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestBindFlags_InvalidAddress(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)

	err := fs.Parse([]string{"--address", "nowhere"})

	assert.Error(t, err)
}

func TestBindFlags_UnsetLeavesZeroValues(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(fs)

	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, &StructuredConfig{}, flags.Config())
}
