package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/folioshop/storefront/libs/clients"
	appctx "github.com/folioshop/storefront/libs/context"
	errorutils "github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/libs/logging"
)

var (
	// RootCmd is the base command (what the binary is called)
	RootCmd = &cobra.Command{
		Use:   "storefront",
		Short: "storefront serves the portfolio shop api and drives checkout and accounts from a terminal",
	}
	ctx = context.Background()
)

// Execute - the main entrypoint for all subcommands
func Execute(version, commit, buildTime string) {
	// setup context with logging, but first we need to setup the environment
	var logger *zerolog.Logger
	ctx = context.WithValue(ctx, appctx.EnvironmentCTXKey, viper.GetString("environment"))
	ctx = context.WithValue(ctx, appctx.DebugLoggingCTXKey, viper.GetBool("debug"))
	ctx, logger = logging.SetupLogger(ctx)

	ctx = context.WithValue(ctx, appctx.VersionCTXKey, version)
	ctx = context.WithValue(ctx, appctx.CommitCTXKey, commit)
	ctx = context.WithValue(ctx, appctx.BuildTimeCTXKey, buildTime)

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("./storefront command encountered an error")
		os.Exit(1)
	}
}

func init() {
	// env - defaults to local
	RootCmd.PersistentFlags().String("environment", "local",
		"the default environment")
	Must(viper.BindPFlag("environment", RootCmd.PersistentFlags().Lookup("environment")))
	Must(viper.BindEnv("environment", "ENV"))

	// debug logging - defaults to off
	RootCmd.PersistentFlags().Bool("debug", false, "turn on debug logging")
	Must(viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug")))
	Must(viper.BindEnv("debug", "DEBUG"))

	// supabase-url - the identity and storage provider, used by account and checkout
	RootCmd.PersistentFlags().String("supabase-url", "",
		"the hosted identity and storage provider project url")
	Must(viper.BindPFlag("supabase-url", RootCmd.PersistentFlags().Lookup("supabase-url")))
	Must(viper.BindEnv("supabase-url", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL"))

	// supabase-anon-key - the public api key of the provider project
	RootCmd.PersistentFlags().String("supabase-anon-key", "",
		"the public api key of the identity and storage provider project")
	Must(viper.BindPFlag("supabase-anon-key", RootCmd.PersistentFlags().Lookup("supabase-anon-key")))
	Must(viper.BindEnv("supabase-anon-key", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY"))

	RootCmd.AddCommand(VersionCmd)
}

// VersionCmd is the command to get the code's version information
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "get the version of this binary",
	Run:   versionRun,
}

func versionRun(command *cobra.Command, args []string) {
	version, _ := command.Context().Value(appctx.VersionCTXKey).(string)
	commit, _ := command.Context().Value(appctx.CommitCTXKey).(string)
	buildTime, _ := command.Context().Value(appctx.BuildTimeCTXKey).(string)
	fmt.Printf("version: %s\ncommit: %s\nbuild time: %s\n",
		version, commit, buildTime,
	)
}

// Perform performs a run
func Perform(action string, fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		err := fn(cmd, args)
		if err != nil {
			logger, lerr := appctx.GetLogger(cmd.Context())
			if lerr != nil {
				_, logger = logging.SetupLogger(cmd.Context())
			}

			log := logger.Err(err).Str("action", action)
			var httpError *errorutils.ErrorBundle
			if errors.As(err, &httpError) {
				state, ok := httpError.Data().(clients.HTTPState)
				if ok {
					log = log.Int("status", state.Status).
						Str("path", state.Path).
						Interface("data", state.Body)
				}
			}
			if kind, ok := errorutils.KindOf(err); ok {
				log = log.Str("kind", string(kind))
			}
			log.Msg("failed")

			fmt.Fprintln(cmd.ErrOrStderr(), errorutils.MessageOf(err))
		}
		<-time.After(10 * time.Millisecond)
		if err != nil {
			os.Exit(1)
		}
	}
}
