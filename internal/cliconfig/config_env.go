package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by the CLI.
const EnvPrefix = "LOTTERY_"

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// ApplyServerEnvConfig applies configuration from environment variables (LOTTERY_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyServerEnvConfig(cfg *ServerConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", env("LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("store", env("STORE"), &cfg.Store)
	s.setString("data-dir", env("DATA_DIR"), &cfg.DataDir)
	s.setString("redis-addr", env("REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("redis-password", env("REDIS_PASSWORD"), &cfg.RedisPassword)
	s.setString("redis-namespace", env("REDIS_NAMESPACE"), &cfg.RedisNamespace)
	s.setString("metrics-addr", env("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", env("POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", env("SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("backlog", env("BACKLOG"), &cfg.Backlog); err != nil {
		return err
	}
	if err := s.setIntFromString("agencies", env("AGENCIES"), &cfg.Agencies); err != nil {
		return err
	}
	if err := s.setIntFromString("length-bytes", env("LENGTH_BYTES"), &cfg.LengthBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("redis-db", env("REDIS_DB"), &cfg.RedisDB); err != nil {
		return err
	}
	if err := s.setIntFromString("winning-number", env("WINNING_NUMBER"), &cfg.WinningNumber); err != nil {
		return err
	}
	if err := s.setIntFromString("accept-burst", env("ACCEPT_BURST"), &cfg.AcceptBurst); err != nil {
		return err
	}

	if err := s.setFloatFromString("accept-rate", env("ACCEPT_RATE"), &cfg.AcceptRate); err != nil {
		return err
	}

	return nil
}

// ApplyAgencyEnvConfig applies configuration from environment variables (LOTTERY_*).
// It respects flags that have been explicitly set (changed map).
func ApplyAgencyEnvConfig(cfg *AgencyConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("server", env("SERVER_ADDR"), &cfg.ServerAddr)
	s.setString("bets-file", env("BETS_FILE"), &cfg.BetsFile)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("dial-timeout", env("DIAL_TIMEOUT"), &cfg.DialTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("id", env("AGENCY_ID"), &cfg.Agency); err != nil {
		return err
	}
	if err := s.setIntFromString("batch-size", env("BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-message-bytes", env("MAX_MESSAGE_BYTES"), &cfg.MaxMessageBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("length-bytes", env("LENGTH_BYTES"), &cfg.LengthBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("connect-attempts", env("CONNECT_ATTEMPTS"), &cfg.ConnectAttempts); err != nil {
		return err
	}

	s.setBoolFromString("continue-on-reject", env("CONTINUE_ON_REJECT"), &cfg.ContinueOnReject)

	return nil
}
