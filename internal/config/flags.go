package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// NetAddress holds structured network address data for host and port.
// It implements the pflag.Value interface.
type NetAddress struct {
	Host string
	Port int
}

// Flags binds the agent's persistent command-line flags. The returned
// [StructuredConfig] is filled once the flag set is parsed; call [Flags.Config]
// afterwards to collect the values.
type Flags struct {
	cfg           StructuredConfig
	serverAddress NetAddress
}

// BindFlags registers all configuration flags on fs.
//
// Flags:
//
//	--config/-c          json file path with configs
//	--db                 SQLite database file
//	--address/-a         local API address in format [host]:[port]
//	--remote             remote record store base URL
//	--token              remote bearer token
//	--project/-p         active project id
//	--agent-id           operator id stamped into submissions
//	--agent-name         operator name stamped into submissions
//	--device-id          device id stamped into submissions
//	--transfer-dir       output directory of exported payloads
//	--retry-attempts     attempts per remote call
//	--request-timeout    timeout of a single remote call (e.g. "15s")
//	--sync-interval      period of automatic sync runs (e.g. "5m")
//	--log-file           agent log file path
//	--log-level          lowest level written to the log file
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVarP(&f.cfg.JSONFilePath, "config", "c", "", "JSON config file path")
	fs.StringVar(&f.cfg.Storage.DB.Path, "db", "", "SQLite database file")
	fs.VarP(&f.serverAddress, "address", "a", "Local API address host:port")
	fs.StringVar(&f.cfg.Adapter.HTTPAddress, "remote", "", "Remote record store base URL")
	fs.StringVar(&f.cfg.Adapter.Token, "token", "", "Remote bearer token")
	fs.StringVarP(&f.cfg.App.ActiveProject, "project", "p", "", "Active project id")
	fs.StringVar(&f.cfg.App.AgentID, "agent-id", "", "Operator id")
	fs.StringVar(&f.cfg.App.AgentName, "agent-name", "", "Operator name")
	fs.StringVar(&f.cfg.App.DeviceID, "device-id", "", "Device id")
	fs.StringVar(&f.cfg.Transfer.Dir, "transfer-dir", "", "Output directory of exported payloads")
	fs.IntVar(&f.cfg.Adapter.RetryAttempts, "retry-attempts", 0, "Attempts per remote call")
	fs.DurationVar(&f.cfg.Adapter.RequestTimeout, "request-timeout", 0, "Remote request timeout (e.g., 15s)")
	fs.DurationVar(&f.cfg.Workers.SyncInterval, "sync-interval", 0, "Automatic sync period (e.g., 5m)")
	fs.StringVar(&f.cfg.App.LogFile, "log-file", "", "Log file path")
	fs.StringVar(&f.cfg.App.LogLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")

	return f
}

// Config returns the values collected from parsed flags.
func (f *Flags) Config() *StructuredConfig {
	cfg := f.cfg
	cfg.Server.HTTPAddress = f.serverAddress.String()
	return &cfg
}

// String returns a canonical host:port string for a NetAddress.
// If neither Host nor Port are set, it returns an empty string.
func (a *NetAddress) String() string {
	if a.Host == "" && a.Port == 0 {
		return ""
	}

	return a.Host + ":" + strconv.Itoa(a.Port)
}

// Type implements pflag.Value.
func (a *NetAddress) Type() string {
	return "host:port"
}

// Set parses the input string of form host:port and populates the NetAddress.
// It validates the port range, checks IP correctness unless host is "localhost",
// and returns an error if the format or values are invalid.
func (a *NetAddress) Set(s string) error {
	hostAndPort := strings.Split(s, ":")
	if len(hostAndPort) != 2 {
		return errors.New("need address in a form `host:port`")
	}

	host := hostAndPort[0]
	port, err := strconv.Atoi(hostAndPort[1])
	if err != nil {
		return err
	}

	if port < 1 || port > 65535 {
		return errors.New("port number must be in range 1-65535")
	}

	if host != "localhost" {
		ip := net.ParseIP(hostAndPort[0])
		if ip == nil {
			return errors.New("incorrect IP-address provided")
		}
	}

	a.Host = host
	a.Port = port
	return nil
}
