package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/lottery/internal/agency"
	"github.com/bft-labs/lottery/internal/app"
	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/internal/frame"
)

// Store backends.
const (
	StoreCSV    = "csv"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "info"

// ServerConfig holds CLI configuration for the lottery server.
type ServerConfig struct {
	ListenAddr   string
	Backlog      int
	Agencies     int
	LengthBytes  int
	PollInterval time.Duration

	Store          string
	DataDir        string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	WinningNumber   int
	MetricsAddr     string
	AcceptRate      float64
	AcceptBurst     int
	ShutdownTimeout time.Duration
	LogLevel        string
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:      app.DefaultListenAddr,
		Backlog:         app.DefaultBacklog,
		Agencies:        app.DefaultAgencies,
		LengthBytes:     frame.DefaultLengthBytes,
		PollInterval:    frame.DefaultPollInterval,
		Store:           StoreCSV,
		DataDir:         ".",
		RedisAddr:       "localhost:6379",
		RedisNamespace:  "default",
		WinningNumber:   domain.DefaultWinningNumber,
		ShutdownTimeout: app.ShutdownTimeout,
		LogLevel:        DefaultLogLevel,
	}
}

// Validate checks the configuration for errors and normalizes values.
func (c *ServerConfig) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case StoreCSV:
		if c.DataDir == "" {
			return fmt.Errorf("%w: data-dir is required for the csv store", domain.ErrInvalidConfig)
		}
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis-addr is required for the redis store", domain.ErrInvalidConfig)
		}
		if c.RedisNamespace == "" {
			return fmt.Errorf("%w: redis-namespace is required for the redis store", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", domain.ErrInvalidConfig, c.Store)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	if c.WinningNumber < 0 {
		return fmt.Errorf("%w: winning number must be >= 0", domain.ErrInvalidConfig)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c.App().Validate()
}

// App returns the subset of settings used by app.Server.
func (c ServerConfig) App() app.ServerConfig {
	return app.ServerConfig{
		ListenAddr:      c.ListenAddr,
		Backlog:         c.Backlog,
		Agencies:        c.Agencies,
		LengthBytes:     c.LengthBytes,
		PollInterval:    c.PollInterval,
		AcceptRate:      c.AcceptRate,
		AcceptBurst:     c.AcceptBurst,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

// AgencyConfig holds CLI configuration for an agency client.
type AgencyConfig struct {
	ServerAddr       string
	Agency           int
	BetsFile         string
	BatchSize        int
	MaxMessageBytes  int
	LengthBytes      int
	ConnectAttempts  int
	DialTimeout      time.Duration
	ContinueOnReject bool
	LogLevel         string
}

// DefaultAgencyConfig returns an AgencyConfig with default values.
func DefaultAgencyConfig() AgencyConfig {
	return AgencyConfig{
		ServerAddr:      "localhost:12345",
		BatchSize:       agency.DefaultBatchSize,
		MaxMessageBytes: agency.DefaultMaxMessageBytes,
		LengthBytes:     frame.DefaultLengthBytes,
		ConnectAttempts: agency.DefaultConnectAttempts,
		DialTimeout:     agency.DefaultDialTimeout,
		LogLevel:        DefaultLogLevel,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *AgencyConfig) Validate() error {
	if c.BetsFile == "" {
		c.BetsFile = fmt.Sprintf("agency-%d.csv", c.Agency)
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c.Client().Validate()
}

// Client returns the settings used by agency.Client.
func (c AgencyConfig) Client() agency.Config {
	return agency.Config{
		ServerAddr:       c.ServerAddr,
		Agency:           c.Agency,
		BatchSize:        c.BatchSize,
		MaxMessageBytes:  c.MaxMessageBytes,
		LengthBytes:      c.LengthBytes,
		DialTimeout:      c.DialTimeout,
		ConnectAttempts:  c.ConnectAttempts,
		ContinueOnReject: c.ContinueOnReject,
	}
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Zero is accepted so that values like redis-db 0 can be set explicitly.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
