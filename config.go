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
	bind          string
	geminiBaseURL string
	geminiKeys    string
	maxPlayers    int
	port          int
	prefix        string
	profile       bool
	questionTime  time.Duration
	returnDelay   time.Duration
	revealDelay   time.Duration
	roomTimeout   time.Duration
	tlsCert       string
	tlsKey        string
	verbose       bool
	version       bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxPlayers < 1 {
		return fmt.Errorf("invalid max player count: %d", c.maxPlayers)
	}
	if c.questionTime < time.Second {
		return fmt.Errorf("invalid question time (must be at least 1s): %s", c.questionTime)
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
	v.SetEnvPrefix("SUNFUN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "sunfun",
		Short:         "A realtime party-quiz server: share a room code, suggest topics, vote, and play an AI-generated quiz.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SUNFUN_BIND)")
	fs.StringVar(&cfg.geminiBaseURL, "gemini-base-url", "https://generativelanguage.googleapis.com", "base URL of the question generation API (env: SUNFUN_GEMINI_BASE_URL)")
	fs.StringVar(&cfg.geminiKeys, "gemini-api-keys", "", "comma-separated Gemini API keys, rotated on quota errors (env: SUNFUN_GEMINI_API_KEYS)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 10, "maximum number of players per room (env: SUNFUN_MAX_PLAYERS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SUNFUN_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SUNFUN_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SUNFUN_PROFILE)")
	fs.DurationVar(&cfg.questionTime, "question-time", 60*time.Second, "countdown per quiz question (env: SUNFUN_QUESTION_TIME)")
	fs.DurationVar(&cfg.returnDelay, "return-delay", 8*time.Second, "time spent on the results screen before returning to the lobby (env: SUNFUN_RETURN_DELAY)")
	fs.DurationVar(&cfg.revealDelay, "reveal-delay", 3*time.Second, "time spent revealing an answer before the next question (env: SUNFUN_REVEAL_DELAY)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 60*time.Minute, "time before idle rooms are ended (env: SUNFUN_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SUNFUN_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SUNFUN_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SUNFUN_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SUNFUN_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("sunfun v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
