package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/goSession/internal/logging"
)

const envPrefix = "GOSESSION_"

type logFlags struct {
	level  string
	format string
	file   string
}

func newRootCmd() *cobra.Command {
	lf := &logFlags{}

	root := &cobra.Command{
		Use:           "gosession",
		Short:         "JWT session token service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyEnv(cmd)
		},
	}

	root.PersistentFlags().StringVar(&lf.level, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&lf.format, "log-format", "console", "log format (console or json)")
	root.PersistentFlags().StringVar(&lf.file, "log-file", "", "also write JSON logs to this rotating file")

	root.AddCommand(newServeCmd(lf))
	root.AddCommand(newTokenCmd())
	root.AddCommand(newHashPasswordCmd())
	return root
}

// applyEnv fills every flag the user did not set from its GOSESSION_
// environment variable.
func applyEnv(cmd *cobra.Command) error {
	var errs []string
	visit := func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		v, ok := os.LookupEnv(envName(f.Name))
		if !ok {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", envName(f.Name), err))
			return
		}
		f.Changed = true
	}
	cmd.Flags().VisitAll(visit)
	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func envName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func (lf *logFlags) build(out io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(lf.level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	format, err := logging.ParseFormat(lf.format)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Outputs = []io.Writer{out}
	cfg.Service = "gosession"
	if lf.file != "" {
		cfg.File = logging.DefaultFileConfig(lf.file)
	}
	return logging.New(cfg)
}
