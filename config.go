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

const (
	storeBolt     = "bolt"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	store          string
	storePath      string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
	words          string
	wordsTimeout   time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}

	switch c.store {
	case storeBolt, storeSQLite, storePostgres:
		if c.storePath == "" {
			return fmt.Errorf("--store-path is required for the %s store", c.store)
		}
	case storeMemory:
	default:
		return fmt.Errorf("invalid store (must be one of bolt, sqlite, postgres, memory): %q", c.store)
	}

	if c.words != "" && c.wordsTimeout <= 0 {
		return errors.New("--words-timeout must be positive when --words is set")
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
	v.SetEnvPrefix("UNDERCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "undercover",
		Short:         "A pass-the-phone word game of civilians, undercovers and blanks.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: UNDERCOVER_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: UNDERCOVER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: UNDERCOVER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: UNDERCOVER_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle game sessions are closed (env: UNDERCOVER_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.store, "store", storeBolt, "snapshot store: bolt, sqlite, postgres or memory (env: UNDERCOVER_STORE)")
	fs.StringVar(&cfg.storePath, "store-path", "undercover.db", "database file, or connection string for postgres (env: UNDERCOVER_STORE_PATH)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: UNDERCOVER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: UNDERCOVER_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: UNDERCOVER_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: UNDERCOVER_VERSION)")
	fs.StringVar(&cfg.words, "words", "", "url or file to load word pairs from at startup (env: UNDERCOVER_WORDS)")
	fs.DurationVar(&cfg.wordsTimeout, "words-timeout", 10*time.Second, "time allowed for loading word pairs (env: UNDERCOVER_WORDS_TIMEOUT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("undercover v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
