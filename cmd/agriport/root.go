package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agriport/internal/app"
	"agriport/internal/config"
	"agriport/internal/logging"
)

// Version is injected at build time
var Version = "dev"

type rootOptions struct {
	ConfigPath string
	LogLevel   string
	Timeout    time.Duration
}

type cliContextKey struct{}

// cliContext carries the loaded configuration through the command tree
type cliContext struct {
	Config  *config.Config
	Logger  *zap.Logger
	Timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "agriport",
		Short:   "Optimal export port assignment over a production region",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: $AGRIPORT_CONFIG, then environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "override log level (debug, info, warn, error)")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "overall operation timeout (0 means none)")

	cmd.AddCommand(
		newGridCommand(),
		newComputeCommand(),
		newCheckCommand(),
		newSummaryCommand(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *rootOptions) error {
	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("AGRIPORT_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	// stdout is reserved for command output
	logger, err := logging.New(logging.Options{
		Level:            cfg.Log.Level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, &cliContext{
		Config:  cfg,
		Logger:  logger,
		Timeout: opts.Timeout,
	}))
	return nil
}

func getCLIContext(cmd *cobra.Command) (*cliContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
	if !ok || cc == nil {
		return nil, errors.New("cli context not initialized")
	}
	return cc, nil
}

// commandContext applies the --timeout flag
func (cc *cliContext) commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if cc.Timeout > 0 {
		return context.WithTimeout(parent, cc.Timeout)
	}
	return context.WithCancel(parent)
}

// withApp builds the application for the duration of fn
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cc, err := getCLIContext(cmd)
	if err != nil {
		return err
	}
	defer cc.Logger.Sync()

	ctx, cancel := cc.commandContext(cmd.Context())
	defer cancel()

	a, err := app.New(ctx, cc.Config, cc.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	return fn(ctx, a)
}
