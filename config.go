package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Seednode/smingo/games/bingo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

const defaultEnvFile = ".env"

type Config struct {
	admins          string
	attachmentHost  string
	bind            string
	cardsDSN        string
	chatHistory     int
	chatMaxLength   int
	dev             bool
	directoryURL    string
	envFile         string
	identityHeader  string
	maxUploadSize   int64
	port            int
	prefix          string
	profile         bool
	tlsCert         string
	tlsKey          string
	uploadEndpoint  string
	uploadKey       string
	uploadTimeout   time.Duration
	upstreamTimeout time.Duration
	verbose         bool
	version         bool

	adminSet map[string]struct{}
	log      zerolog.Logger
}

func (c *Config) validate() error {
	var err error

	if (c.tlsCert == "") != (c.tlsKey == "") {
		err = multierr.Append(err, errors.New("both --tls-cert and --tls-key must be provided together"))
	}
	if c.port < 1 || c.port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port))
	}
	if c.chatHistory < 1 {
		err = multierr.Append(err, fmt.Errorf("invalid chat history (must be positive): %d", c.chatHistory))
	}
	if c.chatMaxLength < 1 {
		err = multierr.Append(err, fmt.Errorf("invalid chat max length (must be positive): %d", c.chatMaxLength))
	}
	if c.maxUploadSize < 1 {
		err = multierr.Append(err, fmt.Errorf("invalid max upload size (must be positive): %d", c.maxUploadSize))
	}
	if c.upstreamTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid upstream timeout (must be positive): %s", c.upstreamTimeout))
	}
	if c.uploadTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid upload timeout (must be positive): %s", c.uploadTimeout))
	}
	if strings.TrimSpace(c.attachmentHost) == "" {
		err = multierr.Append(err, errors.New("--attachment-host must not be empty"))
	}
	if strings.TrimSpace(c.identityHeader) == "" && !c.dev {
		err = multierr.Append(err, errors.New("--identity-header must not be empty outside of --dev"))
	}
	for _, raw := range []struct{ flag, value string }{
		{"--directory-url", c.directoryURL},
		{"--upload-endpoint", c.uploadEndpoint},
	} {
		if raw.value == "" {
			continue
		}
		u, perr := url.Parse(raw.value)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			err = multierr.Append(err, fmt.Errorf("invalid %s (must be an absolute http(s) URL): %q", raw.flag, raw.value))
		}
	}

	return err
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// parseAdmins splits a comma or whitespace separated identity list into a
// lower-cased set.
func parseAdmins(list string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, id := range strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}) {
		set[strings.ToLower(id)] = struct{}{}
	}
	return set
}

func (c *Config) isAdmin(identity string) bool {
	if identity == "" {
		return false
	}
	_, ok := c.adminSet[strings.ToLower(identity)]
	return ok
}

// loadEnvFile reads KEY=value pairs into the process environment without
// overriding variables that are already set. A missing default file is fine.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	return err
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SMINGO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "smingo",
		Short:         "Real-time multiplayer bingo for student union meetings.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()

			envFile := cfg.envFile
			explicit := fs.Changed("env-file")
			if !explicit {
				if fromEnv, ok := os.LookupEnv("SMINGO_ENV_FILE"); ok {
					envFile, explicit = fromEnv, true
				}
			}
			if err := loadEnvFile(envFile, explicit); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}

			var err error
			fs.VisitAll(func(f *pflag.Flag) {
				_ = v.BindPFlag(f.Name, f)
				_ = v.BindEnv(f.Name)
				if !f.Changed && v.IsSet(f.Name) {
					err = multierr.Append(err, fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))))
				}
			})

			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.adminSet = parseAdmins(cfg.admins)
			cfg.log = newLogger(os.Stderr, cfg.verbose)

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

	fs.StringVar(&cfg.admins, "admins", "", "comma or space separated identities allowed on the admin and announcer views (env: SMINGO_ADMINS)")
	fs.StringVar(&cfg.attachmentHost, "attachment-host", bingo.DefaultAttachmentHost, "hostname chat attachments must be served from (env: SMINGO_ATTACHMENT_HOST)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SMINGO_BIND)")
	fs.StringVar(&cfg.cardsDSN, "cards-dsn", "", "postgres:// URL or sqlite path to load the phrase catalog from (env: SMINGO_CARDS_DSN)")
	fs.IntVar(&cfg.chatHistory, "chat-history", bingo.DefaultHistoryLimit, "number of chat messages replayed to joining players (env: SMINGO_CHAT_HISTORY)")
	fs.IntVar(&cfg.chatMaxLength, "chat-max-length", bingo.DefaultMaxChatLength, "maximum chat message length, in characters (env: SMINGO_CHAT_MAX_LENGTH)")
	fs.BoolVar(&cfg.dev, "dev", false, "take identities from the ?kthid= query parameter instead of --identity-header (env: SMINGO_DEV)")
	fs.StringVar(&cfg.directoryURL, "directory-url", "", "user directory used to look up display names (env: SMINGO_DIRECTORY_URL)")
	fs.StringVar(&cfg.envFile, "env-file", defaultEnvFile, "dotenv file to read before the environment (env: SMINGO_ENV_FILE)")
	fs.StringVar(&cfg.identityHeader, "identity-header", "X-Forwarded-User", "request header carrying the authenticated identity (env: SMINGO_IDENTITY_HEADER)")
	fs.Int64Var(&cfg.maxUploadSize, "max-upload-size", 25<<20, "maximum attachment upload size, in bytes (env: SMINGO_MAX_UPLOAD_SIZE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SMINGO_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SMINGO_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SMINGO_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SMINGO_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SMINGO_TLS_KEY)")
	fs.StringVar(&cfg.uploadEndpoint, "upload-endpoint", "https://imgcdn.dev/api/1/upload", "image host upload API; empty disables uploads (env: SMINGO_UPLOAD_ENDPOINT)")
	fs.StringVar(&cfg.uploadKey, "upload-key", "", "image host API key (env: SMINGO_UPLOAD_KEY)")
	fs.DurationVar(&cfg.uploadTimeout, "upload-timeout", 60*time.Second, "time allowed for receiving an upload and again for relaying it to the image host (env: SMINGO_UPLOAD_TIMEOUT)")
	fs.DurationVar(&cfg.upstreamTimeout, "upstream-timeout", 5*time.Second, "timeout for user directory lookups (env: SMINGO_UPSTREAM_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SMINGO_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SMINGO_VERSION)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("smingo v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
