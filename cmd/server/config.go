package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind          string
	port          int
	databaseDSN   string
	pushURL       string
	maxPlayers    int
	sweepInterval time.Duration
	sweepGrace    time.Duration
	verbose       bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxPlayers < 2 {
		return fmt.Errorf("invalid max-players (must be at least 2): %d", c.maxPlayers)
	}
	return nil
}

func (c *Config) addr() string {
	return fmt.Sprintf("%s:%d", c.bind, c.port)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CLUEROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "clueroom-server",
		Short:         "Replicated lobby tree server for cooperative clue hunts.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CLUEROOM_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: CLUEROOM_PORT)")
	fs.StringVar(&cfg.databaseDSN, "database-dsn", "", "postgres DSN for tree persistence; in-memory if empty (env: CLUEROOM_DATABASE_DSN)")
	fs.StringVar(&cfg.pushURL, "push-url", "", "push gateway URL; notifications disabled if empty (env: CLUEROOM_PUSH_URL)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 4, "lobby slot count (env: CLUEROOM_MAX_PLAYERS)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 5*time.Minute, "how often to scan for abandoned lobbies (env: CLUEROOM_SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.sweepGrace, "sweep-grace", 30*time.Minute, "idle time before an empty lobby is deleted (env: CLUEROOM_SWEEP_GRACE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "debug logging (env: CLUEROOM_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}
