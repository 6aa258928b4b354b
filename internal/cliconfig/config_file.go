package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML layout of the config file. Durations are strings
// to keep the file TOML friendly.
type FileConfig struct {
	LogLevel string           `toml:"log_level"`
	Server   ServerFileConfig `toml:"server"`
	Agency   AgencyFileConfig `toml:"agency"`
}

// ServerFileConfig is the [server] table.
type ServerFileConfig struct {
	ListenAddr      string  `toml:"listen_addr"`
	Backlog         int     `toml:"backlog"`
	Agencies        int     `toml:"agencies"`
	LengthBytes     int     `toml:"length_bytes"`
	PollInterval    string  `toml:"poll_interval"`
	Store           string  `toml:"store"`
	DataDir         string  `toml:"data_dir"`
	RedisAddr       string  `toml:"redis_addr"`
	RedisPassword   string  `toml:"redis_password"`
	RedisDB         int     `toml:"redis_db"`
	RedisNamespace  string  `toml:"redis_namespace"`
	WinningNumber   int     `toml:"winning_number"`
	MetricsAddr     string  `toml:"metrics_addr"`
	AcceptRate      float64 `toml:"accept_rate"`
	AcceptBurst     int     `toml:"accept_burst"`
	ShutdownTimeout string  `toml:"shutdown_timeout"`
	LogLevel        string  `toml:"log_level"`
}

// AgencyFileConfig is the [agency] table.
type AgencyFileConfig struct {
	ServerAddr       string `toml:"server_addr"`
	ID               int    `toml:"id"`
	BetsFile         string `toml:"bets_file"`
	BatchSize        int    `toml:"batch_size"`
	MaxMessageBytes  int    `toml:"max_message_bytes"`
	LengthBytes      int    `toml:"length_bytes"`
	ConnectAttempts  int    `toml:"connect_attempts"`
	DialTimeout      string `toml:"dial_timeout"`
	ContinueOnReject *bool  `toml:"continue_on_reject"`
	LogLevel         string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.lottery/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".lottery", "config.toml")
	}
	return ""
}

// ServerLogLevel returns the level the server should log at: the [server]
// table wins over the top-level key.
func (fc FileConfig) ServerLogLevel() string {
	if fc.Server.LogLevel != "" {
		return fc.Server.LogLevel
	}
	return fc.LogLevel
}

// AgencyLogLevel returns the level the agency client should log at.
func (fc FileConfig) AgencyLogLevel() string {
	if fc.Agency.LogLevel != "" {
		return fc.Agency.LogLevel
	}
	return fc.LogLevel
}

// ApplyServerFileConfig applies the [server] table to cfg.
// It respects flags that have been explicitly set (changed map).
func ApplyServerFileConfig(cfg *ServerConfig, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)
	sc := fc.Server

	s.setString("listen", sc.ListenAddr, &cfg.ListenAddr)
	s.setString("store", sc.Store, &cfg.Store)
	s.setString("data-dir", sc.DataDir, &cfg.DataDir)
	s.setString("redis-addr", sc.RedisAddr, &cfg.RedisAddr)
	s.setString("redis-password", sc.RedisPassword, &cfg.RedisPassword)
	s.setString("redis-namespace", sc.RedisNamespace, &cfg.RedisNamespace)
	s.setString("metrics-addr", sc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.ServerLogLevel(), &cfg.LogLevel)

	if err := s.setDuration("poll", sc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", sc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("backlog", sc.Backlog, &cfg.Backlog)
	s.setInt("agencies", sc.Agencies, &cfg.Agencies)
	s.setInt("length-bytes", sc.LengthBytes, &cfg.LengthBytes)
	s.setInt("redis-db", sc.RedisDB, &cfg.RedisDB)
	s.setInt("winning-number", sc.WinningNumber, &cfg.WinningNumber)
	s.setInt("accept-burst", sc.AcceptBurst, &cfg.AcceptBurst)

	s.setFloat("accept-rate", sc.AcceptRate, &cfg.AcceptRate)

	return nil
}

// ApplyAgencyFileConfig applies the [agency] table to cfg.
// It respects flags that have been explicitly set (changed map).
func ApplyAgencyFileConfig(cfg *AgencyConfig, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)
	ac := fc.Agency

	s.setString("server", ac.ServerAddr, &cfg.ServerAddr)
	s.setString("bets-file", ac.BetsFile, &cfg.BetsFile)
	s.setString("log-level", fc.AgencyLogLevel(), &cfg.LogLevel)

	if err := s.setDuration("dial-timeout", ac.DialTimeout, &cfg.DialTimeout); err != nil {
		return err
	}

	s.setInt("id", ac.ID, &cfg.Agency)
	s.setInt("batch-size", ac.BatchSize, &cfg.BatchSize)
	s.setInt("max-message-bytes", ac.MaxMessageBytes, &cfg.MaxMessageBytes)
	s.setInt("length-bytes", ac.LengthBytes, &cfg.LengthBytes)
	s.setInt("connect-attempts", ac.ConnectAttempts, &cfg.ConnectAttempts)

	s.setBool("continue-on-reject", ac.ContinueOnReject, &cfg.ContinueOnReject)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
