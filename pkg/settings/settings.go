// Package settings loads kbchat's configuration from flags, environment
// (KBCHAT_*) and an optional config.yaml, and builds the service clients from it.
package settings

import (
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/kbchat/pkg/answering"
	"github.com/go-go-golems/kbchat/pkg/exchange"
	"github.com/go-go-golems/kbchat/pkg/ingestion"
)

const EnvPrefix = "kbchat"

const (
	TitleStrategyTruncate = "truncate"
	TitleStrategyOpenAI   = "openai"
)

const (
	DefaultAPIURL         = "http://localhost:8000/api"
	DefaultRequestTimeout = 60 * time.Second
	DefaultOpenAIModel    = "gpt-4o-mini"
)

type Settings struct {
	APIURL         string        `mapstructure:"api-url"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	TitleStrategy  string `mapstructure:"title-strategy"`
	TitleMaxLength int    `mapstructure:"title-max-length"`

	OpenAIAPIKey  string `mapstructure:"openai-api-key"`
	OpenAIBaseURL string `mapstructure:"openai-base-url"`
	OpenAIModel   string `mapstructure:"openai-model"`
}

// SetDefaults registers every key, so that AutomaticEnv picks them up on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api-url", DefaultAPIURL)
	v.SetDefault("request-timeout", DefaultRequestTimeout)
	v.SetDefault("title-strategy", TitleStrategyTruncate)
	v.SetDefault("title-max-length", exchange.DefaultTitleMaxLength)
	v.SetDefault("openai-api-key", "")
	v.SetDefault("openai-base-url", "")
	v.SetDefault("openai-model", DefaultOpenAIModel)
}

// AddFlags adds the service flags as persistent flags of cmd.
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("api-url", DefaultAPIURL, "Base URL of the knowledge assistant API")
	flags.Duration("request-timeout", DefaultRequestTimeout, "Timeout for a single request to the API")
	flags.String("title-strategy", TitleStrategyTruncate, "How to title new chats (truncate, openai)")
	flags.Int("title-max-length", exchange.DefaultTitleMaxLength, "Maximum title length in characters")
	flags.String("openai-api-key", "", "OpenAI API key (openai title strategy)")
	flags.String("openai-base-url", "", "OpenAI compatible base URL (openai title strategy)")
	flags.String("openai-model", DefaultOpenAIModel, "Model used to generate titles")
}

// ReadConfig points v at configFile, or at config.yaml in the usual search
// paths if configFile is empty, and enables KBCHAT_* environment overrides.
// A missing config file is not an error.
func ReadConfig(v *viper.Viper, configFile string) error {
	v.SetEnvPrefix(EnvPrefix)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.kbchat")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(xdgConfigPath, "kbchat"))
		}
		v.AddConfigPath("/etc/kbchat")
	}

	err := v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// no config file, flags and env only
	} else if err != nil {
		return errors.Wrap(err, "could not read config file")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	return nil
}

func Load(v *viper.Viper) (*Settings, error) {
	ret := &Settings{}
	if err := v.Unmarshal(ret); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	ret.APIURL = strings.TrimRight(ret.APIURL, "/")
	if err := ret.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("api_url", ret.APIURL).
		Dur("request_timeout", ret.RequestTimeout).
		Str("title_strategy", ret.TitleStrategy).
		Str("config", v.ConfigFileUsed()).
		Msg("loaded settings")

	return ret, nil
}

func (s *Settings) Validate() error {
	if err := ValidateServiceURL(s.APIURL); err != nil {
		return errors.Wrap(err, "invalid api-url")
	}
	if s.RequestTimeout <= 0 {
		return errors.Errorf("request-timeout must be positive, got %s", s.RequestTimeout)
	}
	if s.TitleMaxLength <= 0 {
		return errors.Errorf("title-max-length must be positive, got %d", s.TitleMaxLength)
	}

	switch s.TitleStrategy {
	case TitleStrategyTruncate:
	case TitleStrategyOpenAI:
		if s.OpenAIAPIKey == "" {
			return errors.New("title-strategy openai needs openai-api-key")
		}
		if s.OpenAIBaseURL != "" {
			if err := ValidateServiceURL(s.OpenAIBaseURL); err != nil {
				return errors.Wrap(err, "invalid openai-base-url")
			}
		}
	default:
		return errors.Errorf("unknown title-strategy %q", s.TitleStrategy)
	}

	return nil
}

// ValidateServiceURL accepts absolute http(s) URLs with a host. Loopback and
// private addresses are fine: the assistant usually runs on localhost.
func ValidateServiceURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return errors.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("URL host is required")
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		if addr.IsUnspecified() || addr.IsMulticast() {
			return errors.Errorf("disallowed IP address %q", host)
		}
	}

	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return errors.New("URL must not carry a query or fragment")
	}

	return nil
}

func (s *Settings) AnsweringClient() *answering.Client {
	return answering.NewClient(s.APIURL, answering.WithTimeout(s.RequestTimeout))
}

func (s *Settings) IngestionClient() *ingestion.Client {
	return ingestion.NewClient(s.APIURL, ingestion.WithTimeout(s.RequestTimeout))
}

func (s *Settings) TitleDeriver() exchange.TitleDeriver {
	if s.TitleStrategy == TitleStrategyOpenAI {
		client := exchange.NewOpenAIClient(s.OpenAIAPIKey, s.OpenAIBaseURL)
		return exchange.NewOpenAIDeriver(client, s.OpenAIModel, s.TitleMaxLength)
	}
	return exchange.NewTruncatingDeriver(s.TitleMaxLength)
}
