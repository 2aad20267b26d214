package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/danmaku/internal/config"
)

func newRootCmd() *cobra.Command {
	var (
		configFile string
		configEnv  string
		cfg        *config.Config
	)
	v := config.New()
	current := func() *config.Config { return cfg }

	root := &cobra.Command{
		Use:          "danmaku",
		Short:        "Live room server with danmaku fan-out and WebRTC signaling",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Logger first so config loading can log.
			setupLogger("info", true)
			file := configFile
			if file == "" {
				if configEnv == "" {
					configEnv = os.Getenv("CONFIG_ENV")
				}
				file = config.FileFor(configEnv)
			}
			var err error
			if cfg, err = config.LoadFile(v, file); err != nil {
				return err
			}
			setupLogger(cfg.LogLevel, cfg.Mode == "debug")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(current())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file, overrides --config-env")
	flags.StringVar(&configEnv, "config-env", "", "config environment, reads config/config.<env>.yaml (default $CONFIG_ENV or dev)")
	flags.Int("port", 0, "listen port")
	_ = v.BindPFlag("port", flags.Lookup("port"))

	root.AddCommand(
		newServeCmd(current),
		newMigrateCmd(current),
		newAdminTokenCmd(current),
	)
	return root
}

func setupLogger(level string, console bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
