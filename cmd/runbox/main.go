package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/happyhackingspace/runbox"
	"github.com/happyhackingspace/runbox/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

// exitError carries the exit status of the executed program out of a
// command without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type rootOptions struct {
	configPath string
	provider   string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "runbox",
		Short: "Compile and run untrusted programs and test fixtures",
		Long: `runbox - Build and run submitted programs in an isolated workspace.

A submission is a program, optional setup code shared with it, and an
optional test fixture. Fixtures report results as tagged protocol lines
(<DESCRIBE::>, <IT::>, <PASSED::>, <FAILED::>, <COMPLETEDIN::>) on stdout.

Supported languages: go, c, cpp, objc, python.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ./runbox.yaml or $HOME/.runbox/runbox.yaml)")
	cmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "Provider: local, nsjail, docker, gvisor (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: console, json (overrides config)")

	cmd.AddCommand(
		newRunCmd(opts),
		newDetectCmd(),
		newLanguagesCmd(),
		newProvidersCmd(),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the config file and applies the persistent flags on top.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.provider != "" {
		cfg.Provider = o.provider
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var encoder zapcore.Encoder
	switch format {
	case "", "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("log format %q: use console or json", format)
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)), nil
}

// newRunner builds a runner from cfg, logging to the command's stderr.
func newRunner(cmd *cobra.Command, cfg *config.Config, extra ...runbox.Option) (runbox.Runner, func(), error) {
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}

	opts := append(cfg.Options(), runbox.WithLogger(runbox.NewZapLogger(logger)))
	opts = append(opts, extra...)

	r, err := runbox.New(opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return r, func() {
		r.Close()
		_ = logger.Sync()
	}, nil
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
