package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	logAdapter "github.com/bft-labs/lottery/internal/adapters/log"
	"github.com/bft-labs/lottery/internal/agency"
	"github.com/bft-labs/lottery/internal/cliconfig"
	"github.com/bft-labs/lottery/internal/ports"
)

func newAgencyCommand(log zerolog.Logger) *cobra.Command {
	cfg := cliconfig.DefaultAgencyConfig()
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "agency",
		Short: "Upload an agency's bets and print its winners",
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := changedFlags(cmd)

			fc, _, loaded, err := loadFileConfig(cfgPath)
			if err != nil {
				return err
			}
			if loaded {
				if err := cliconfig.ApplyAgencyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyAgencyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := logAdapter.SetLevel(cfg.LogLevel); err != nil {
				return err
			}

			logger := logAdapter.NewZerologAdapterWithLogger(log).With(ports.Int("agency", cfg.Agency))

			bets, skipped, err := agency.ReadBetsFile(cfg.BetsFile, cfg.Agency)
			if err != nil {
				return fmt.Errorf("read bets: %w", err)
			}
			for _, s := range skipped {
				logger.Warn("skipping bet",
					ports.String("file", cfg.BetsFile),
					ports.Int("line", s.Line),
					ports.String("reason", s.Reason),
				)
			}
			logger.Info("bets loaded", ports.Int("bets", len(bets)), ports.Int("skipped", len(skipped)))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := agency.NewClient(cfg.Client(), logger).Run(ctx, bets)
			if err != nil {
				return err
			}
			for _, doc := range res.Winners {
				fmt.Fprintln(cmd.OutOrStdout(), doc)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.lottery/config.toml)")
	f.StringVar(&cfg.ServerAddr, "server", cfg.ServerAddr, "lottery server address")
	f.IntVar(&cfg.Agency, "id", cfg.Agency, "agency ID (1..N)")
	f.StringVar(&cfg.BetsFile, "bets-file", cfg.BetsFile, "CSV file with name,surname,document,birthdate,number rows (default agency-<id>.csv)")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "maximum bets per batch")
	f.IntVar(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "maximum encoded size of a batch message")
	f.IntVar(&cfg.LengthBytes, "length-bytes", cfg.LengthBytes, "width of the frame length field")
	f.IntVar(&cfg.ConnectAttempts, "connect-attempts", cfg.ConnectAttempts, "connection attempts before giving up")
	f.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for each connection attempt")
	f.BoolVar(&cfg.ContinueOnReject, "continue-on-reject", cfg.ContinueOnReject, "keep sending after the server rejects a batch")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	return cmd
}
