package bridge

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/kmap/internal/config"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8787

	// A phase body is {"phase": "<name>"}; a signal body adds an optional id.
	DefaultPhaseBodyBytes  int64 = 256
	DefaultSignalBodyBytes int64 = 1 << 10
)

// ErrNotLoopback rejects bind hosts reachable from other machines.
var ErrNotLoopback = errors.New("bridge: host must be a loopback address")

// Timeouts bound the HTTP server's connection handling.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

func defaultTimeouts() Timeouts {
	return Timeouts{Read: 5 * time.Second, Write: 5 * time.Second, Idle: 30 * time.Second}
}

// Settings is the resolved bridge configuration. Host is loopback whenever
// Enabled is set.
type Settings struct {
	Enabled         bool
	Host            string
	Port            int
	PhaseBodyBytes  int64
	SignalBodyBytes int64
	Timeouts        Timeouts
}

// envOverride applies one KMAP_BRIDGE_* variable. Malformed values are errors.
type envOverride struct {
	key   string
	apply func(s *Settings, value string) error
}

var envOverrides = []envOverride{
	{"KMAP_BRIDGE_ENABLED", func(s *Settings, v string) error {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		s.Enabled = enabled
		return nil
	}},
	{"KMAP_BRIDGE_HOST", func(s *Settings, v string) error {
		s.Host = v
		return nil
	}},
	{"KMAP_BRIDGE_PORT", func(s *Settings, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("port %q out of range", v)
		}
		s.Port = port
		return nil
	}},
}

// SettingsFromConfig resolves the bridge section of cfg, then the
// KMAP_BRIDGE_* environment. A disabled bridge skips the host check.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	settings := Settings{
		Enabled:         true,
		Host:            DefaultHost,
		Port:            DefaultPort,
		PhaseBodyBytes:  DefaultPhaseBodyBytes,
		SignalBodyBytes: DefaultSignalBodyBytes,
		Timeouts:        defaultTimeouts(),
	}
	if cfg != nil {
		raw := cfg.Project.Bridge
		if raw.Enabled != nil {
			settings.Enabled = *raw.Enabled
		}
		if raw.Host != "" {
			settings.Host = raw.Host
		}
		if raw.Port > 0 {
			settings.Port = raw.Port
		}
	}
	for _, o := range envOverrides {
		value, ok := os.LookupEnv(o.key)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := o.apply(&settings, strings.TrimSpace(value)); err != nil {
			return Settings{}, fmt.Errorf("bridge: %s: %w", o.key, err)
		}
	}
	if settings.Enabled && !IsLoopback(settings.Host) {
		return Settings{}, fmt.Errorf("%w: %s", ErrNotLoopback, settings.Host)
	}
	return settings, nil
}

// IsLoopback reports whether host names this machine only: localhost or a
// loopback IP, optionally bracketed.
func IsLoopback(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"))
	return ip != nil && ip.IsLoopback()
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(strings.Trim(s.Host, "[]"), strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

// bodyLimit returns the request cap for a POST endpoint.
func (s Settings) bodyLimit(path string) int64 {
	limit := s.SignalBodyBytes
	if path == "/phase" {
		limit = s.PhaseBodyBytes
	}
	if limit <= 0 {
		return DefaultSignalBodyBytes
	}
	return limit
}
