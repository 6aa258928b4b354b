package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	logAdapter "github.com/bft-labs/lottery/internal/adapters/log"
	"github.com/bft-labs/lottery/internal/cliconfig"
	"github.com/bft-labs/lottery/pkg/lottery"
)

func newServeCommand(log zerolog.Logger) *cobra.Command {
	cfg := cliconfig.DefaultServerConfig()
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the lottery server",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := changedFlags(cmd)

			fc, loadedPath, loaded, err := loadFileConfig(cfgPath)
			if err != nil {
				return err
			}
			if loaded {
				if err := cliconfig.ApplyServerFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Environment overrides the file; flags override both.
			if err := cliconfig.ApplyServerEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logAdapter.SetLevel(cfg.LogLevel); err != nil {
				return err
			}

			logCfg := cfg
			if logCfg.RedisPassword != "" {
				logCfg.RedisPassword = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			l, err := lottery.New(cfg, lottery.WithLogger(logAdapter.NewZerologAdapterWithLogger(log)))
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			if err := l.Start(ctx); err != nil {
				return fmt.Errorf("start server: %w", err)
			}

			if loaded {
				watcher := cliconfig.NewWatcher(loadedPath, logAdapter.NewZerologAdapterWithLogger(log), func(fc cliconfig.FileConfig) {
					level := fc.ServerLogLevel()
					if level == "" || changed["log-level"] {
						return
					}
					if err := logAdapter.SetLevel(level); err != nil {
						log.Warn().Err(err).Msg("ignoring log level from config")
						return
					}
					log.Info().Str("log_level", level).Msg("log level updated")
				})
				go func() {
					if err := watcher.Run(ctx); err != nil {
						log.Warn().Err(err).Msg("config watcher stopped")
					}
				}()
			}

			// Stop when signalled or when the server stops on its own.
			doneCh := make(chan struct{})
			go func() {
				ticker := time.NewTicker(250 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if status := l.Status(); status == lottery.StateCrashed || status == lottery.StateStopped {
							close(doneCh)
							return
						}
					}
				}
			}()

			select {
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("received signal, stopping...")
			case <-doneCh:
				log.Error().Str("state", string(l.Status())).Msg("server stopped unexpectedly")
			}

			if err := l.Stop(); err != nil {
				return fmt.Errorf("stop server: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.lottery/config.toml)")
	f.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "address to accept agency connections on")
	f.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog for pending connections")
	f.IntVar(&cfg.Agencies, "agencies", cfg.Agencies, "number of agencies taking part in the round")
	f.IntVar(&cfg.LengthBytes, "length-bytes", cfg.LengthBytes, "width of the frame length field")
	f.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "how often blocked I/O checks for shutdown")

	f.StringVar(&cfg.Store, "store", cfg.Store, "bet store backend: csv, memory or redis")
	f.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for the csv store")
	f.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the redis store")
	f.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "redis password")
	f.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database number")
	f.StringVar(&cfg.RedisNamespace, "redis-namespace", cfg.RedisNamespace, "key namespace for this round")

	f.IntVar(&cfg.WinningNumber, "winning-number", cfg.WinningNumber, "number drawn for the round")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled when empty)")
	f.Float64Var(&cfg.AcceptRate, "accept-rate", cfg.AcceptRate, "maximum new connections per second (0 for unlimited)")
	f.IntVar(&cfg.AcceptBurst, "accept-burst", cfg.AcceptBurst, "connection burst allowed above accept-rate")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long to wait for sessions on shutdown")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	return cmd
}
