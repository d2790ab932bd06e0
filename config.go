package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	port              int
	httpPort          int
	discovery         bool
	discussionTimeout time.Duration
	voteTimeout       time.Duration
	roundGrace        time.Duration
	profile           bool
	tlsCert           string
	tlsKey            string
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 0 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 0-65535 inclusive): %d", c.port)
	}
	if c.httpPort < 0 || c.httpPort > 65535 {
		return fmt.Errorf("invalid http port (must be between 0-65535 inclusive, 0 disables): %d", c.httpPort)
	}
	if c.discussionTimeout <= 0 {
		return fmt.Errorf("invalid discussion timeout (must be positive): %s", c.discussionTimeout)
	}
	if c.voteTimeout <= 0 {
		return fmt.Errorf("invalid vote timeout (must be positive): %s", c.voteTimeout)
	}
	if c.roundGrace < 0 {
		return fmt.Errorf("invalid round grace period (must not be negative): %s", c.roundGrace)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BLENDIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "blendin",
		Short:         "A social deduction game server: one impostor, timed discussions, plurality votes.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BLENDIN_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5555, "tcp port to serve the game on (env: BLENDIN_PORT)")
	fs.IntVar(&cfg.httpPort, "http-port", 8080, "port for the status endpoints, 0 to disable (env: BLENDIN_HTTP_PORT)")
	fs.BoolVar(&cfg.discovery, "discovery", false, "answer udp discovery probes on the game port (env: BLENDIN_DISCOVERY)")
	fs.DurationVar(&cfg.discussionTimeout, "discussion-timeout", 30*time.Second, "length of each discussion phase (env: BLENDIN_DISCUSSION_TIMEOUT)")
	fs.DurationVar(&cfg.voteTimeout, "vote-timeout", 20*time.Second, "length of each voting phase (env: BLENDIN_VOTE_TIMEOUT)")
	fs.DurationVar(&cfg.roundGrace, "round-grace", 2*time.Second, "pause between a vote result and the next round (env: BLENDIN_ROUND_GRACE)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BLENDIN_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate for the status endpoints (env: BLENDIN_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile for the status endpoints (env: BLENDIN_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BLENDIN_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BLENDIN_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("blendin v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}
