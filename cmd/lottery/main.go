package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	logAdapter "github.com/bft-labs/lottery/internal/adapters/log"
	"github.com/bft-labs/lottery/internal/cliconfig"
)

const helpDescription = `
Run a lottery round across several betting agencies.

The server collects bets from every agency over TCP, stores them, and once
all agencies have finished uploading it tells each one which of its bets won.

Highlights:
  - Length-prefixed text protocol, one session per agency connection.
  - CSV, in-memory or Redis storage for bets.
  - Configure via file ($HOME/.lottery/config.toml), LOTTERY_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  lottery serve --agencies 5 --listen 0.0.0.0:12345
  lottery serve --store redis --redis-addr localhost:6379 --metrics-addr :9100
  lottery agency --id 1 --server localhost:12345 --bets-file agency-1.csv
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// changedFlags returns the names of flags set on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

// loadFileConfig reads the config file at path, or the default path when
// empty. A missing default file is not an error.
func loadFileConfig(path string) (cliconfig.FileConfig, string, bool, error) {
	explicit := path != ""
	if !explicit {
		path = cliconfig.DefaultConfigPath()
	}
	if path == "" || (!explicit && !cliconfig.FileExists(path)) {
		return cliconfig.FileConfig{}, "", false, nil
	}
	fc, err := cliconfig.LoadFileConfig(path)
	if err != nil {
		return fc, path, false, fmt.Errorf("load config: %w", err)
	}
	return fc, path, true, nil
}

func main() {
	log := logAdapter.NewZerologAdapter().Logger()

	root := &cobra.Command{
		Use:           "lottery",
		Short:         "Collect bets from agencies and announce the winners",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(log))
	root.AddCommand(newAgencyCommand(log))

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("lottery")
		os.Exit(1)
	}
}
