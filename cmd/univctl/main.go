// Command univctl drives the university admin client from a terminal: it
// signs in, pages through the list screens and performs mutations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/univ-admin-client/internal/config"
	"github.com/Sternrassler/univ-admin-client/pkg/app"
	"github.com/Sternrassler/univ-admin-client/pkg/logging"
	"github.com/Sternrassler/univ-admin-client/pkg/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by the subcommands of one invocation.
type cli struct {
	configPath  string
	envFile     string
	logLevel    string
	metricsAddr string
	pretty      bool

	app         *app.App
	stopMetrics context.CancelFunc
	metricsDone chan struct{}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "univctl",
		Short:         "University admin client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	flags.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	flags.BoolVar(&c.pretty, "pretty", false, "human-readable logs")

	root.AddCommand(
		newLoginCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newListCmd(c),
		newDeleteCmd(c),
		newRechargeCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.metricsAddr != "" {
		cfg.Metrics.Addr = c.metricsAddr
	}
	if c.pretty {
		cfg.Log.Pretty = true
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Pretty = cfg.Log.Pretty
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	a, err := app.New(cmd.Context(), *cfg)
	if err != nil {
		return err
	}
	c.app = a

	if cfg.Metrics.Addr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopMetrics = cancel
		c.metricsDone = make(chan struct{})
		go func() {
			defer close(c.metricsDone)
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server failed")
			}
		}()
	}
	return nil
}

func (c *cli) teardown() error {
	if c.stopMetrics != nil {
		c.stopMetrics()
		<-c.metricsDone
	}
	if c.app == nil {
		return nil
	}
	if err := c.app.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
