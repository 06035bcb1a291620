// Command coachbot runs the LINE coaching webhook service and offers operator
// commands for subscriptions and classification checks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // REPLY_TIMEZONE must resolve on minimal images

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-coach-bot/internal/config"
	"github.com/tbourn/go-coach-bot/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Configuration is loaded once before
// any subcommand runs.
func newRootCmd() *cobra.Command {
	var (
		envFile string
		cfg     config.Config
	)
	root := &cobra.Command{
		Use:           "coachbot",
		Short:         "LINE coaching bot webhook service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			sysutil.ConfigureLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty, sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "coachbot"))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	cfgFn := func() config.Config { return cfg }
	root.AddCommand(
		newServeCmd(cfgFn),
		newRegisterCmd(cfgFn),
		newStatusCmd(cfgFn),
		newClassifyCmd(cfgFn),
	)
	return root
}
