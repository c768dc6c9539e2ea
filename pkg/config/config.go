package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-go-golems/moviechat/pkg/logging"
)

const (
	AppName = "moviechat"

	DefaultDBPath             = "movies.db"
	DefaultModelProvider      = "gemini"
	DefaultModelName          = "gemini-flash-latest"
	DefaultMaxToolIterations  = 10
	DefaultGitHubAPIURL       = "https://api.github.com"
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultAddr               = ":8080"
	DefaultSessionIdleTimeout = 30 * time.Minute
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisGroup         = "moviechat"
)

// Settings is the fully resolved runtime configuration.
//
// Secrets (API keys, GitHub token and repository) are never exposed as
// flags; they come from the environment or the config file only.
type Settings struct {
	DBPath      string `mapstructure:"db-path"`
	PromptsFile string `mapstructure:"prompts-file"`

	ModelProvider     string `mapstructure:"model-provider"`
	ModelName         string `mapstructure:"model-name"`
	GoogleAPIKey      string `mapstructure:"google-api-key"`
	OpenAIAPIKey      string `mapstructure:"openai-api-key"`
	MaxToolIterations int    `mapstructure:"max-tool-iterations"`

	GitHubToken  string        `mapstructure:"github-token"`
	GitHubRepo   string        `mapstructure:"github-repo"`
	GitHubAPIURL string        `mapstructure:"github-api-url"`
	HTTPTimeout  time.Duration `mapstructure:"http-timeout"`

	Addr               string        `mapstructure:"addr"`
	SessionIdleTimeout time.Duration `mapstructure:"session-idle-timeout"`
	EventLogDB         string        `mapstructure:"event-log-db"`

	RedisEnabled bool   `mapstructure:"redis-enabled"`
	RedisAddr    string `mapstructure:"redis-addr"`
	RedisGroup   string `mapstructure:"redis-group"`
	// RedisInstance names this process on the stream; empty picks a random name.
	RedisInstance string `mapstructure:"redis-instance"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`
	LogCaller bool   `mapstructure:"log-caller"`
}

// Logging extracts the logger configuration.
func (s *Settings) Logging() logging.Settings {
	return logging.Settings{
		Level:      s.LogLevel,
		Format:     s.LogFormat,
		File:       s.LogFile,
		WithCaller: s.LogCaller,
	}
}

// Validate checks values that would otherwise fail late, deep inside a request.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.ModelProvider) {
	case "gemini", "google", "openai", "dummy":
	default:
		return errors.Errorf("unknown model provider %q", s.ModelProvider)
	}
	if strings.TrimSpace(s.DBPath) == "" {
		return errors.New("db-path must not be empty")
	}
	if s.MaxToolIterations <= 0 {
		return errors.Errorf("max-tool-iterations must be positive, got %d", s.MaxToolIterations)
	}
	if s.HTTPTimeout < 0 {
		return errors.New("http-timeout must not be negative")
	}
	return nil
}

// New returns a viper instance with defaults and environment bindings set up.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MOVIECHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// secrets keep the names the hosting environment already uses
	_ = v.BindEnv("google-api-key", "GOOGLE_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("openai-api-key", "OPENAI_API_KEY")
	_ = v.BindEnv("github-token", "GITHUB_TOKEN")
	_ = v.BindEnv("github-repo", "GITHUB_REPO")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db-path", DefaultDBPath)
	v.SetDefault("prompts-file", "")
	v.SetDefault("model-provider", DefaultModelProvider)
	v.SetDefault("model-name", DefaultModelName)
	v.SetDefault("max-tool-iterations", DefaultMaxToolIterations)
	v.SetDefault("github-api-url", DefaultGitHubAPIURL)
	v.SetDefault("http-timeout", DefaultHTTPTimeout)
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("session-idle-timeout", DefaultSessionIdleTimeout)
	v.SetDefault("event-log-db", "")
	v.SetDefault("redis-enabled", false)
	v.SetDefault("redis-addr", DefaultRedisAddr)
	v.SetDefault("redis-group", DefaultRedisGroup)
	v.SetDefault("redis-instance", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("log-file", "")
	v.SetDefault("log-caller", false)
}

// AddFlags registers the non-secret settings as persistent flags.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a config file (default: moviechat.yaml in ., $HOME/.moviechat, /etc/moviechat)")
	fs.String("db-path", DefaultDBPath, "SQLite database holding the movies table")
	fs.String("prompts-file", "", "YAML file overriding the built-in prompts and schema description")
	fs.String("model-provider", DefaultModelProvider, "Model provider: gemini, openai or dummy")
	fs.String("model-name", DefaultModelName, "Model identifier passed to the provider")
	fs.Int("max-tool-iterations", DefaultMaxToolIterations, "Maximum model round-trips per user message")
	fs.String("github-api-url", DefaultGitHubAPIURL, "GitHub REST API base URL")
	fs.Duration("http-timeout", DefaultHTTPTimeout, "Timeout for issue tracker requests")
	fs.String("event-log-db", "", "SQLite file for the chat event log (disabled when empty)")
	fs.Bool("redis-enabled", false, "Publish chat events over Redis Streams instead of in-process")
	fs.String("redis-addr", DefaultRedisAddr, "Redis address host:port")
	fs.String("redis-group", DefaultRedisGroup, "Redis consumer group prefix")
	fs.String("redis-instance", "", "Name of this process in Redis consumer groups (random when empty)")
	fs.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	fs.String("log-format", "text", "Log format (text or json)")
	fs.String("log-file", "", "Write logs to this file (rotated)")
	fs.Bool("log-caller", false, "Include caller file:line in log lines")
}

// BindFlags binds flags to viper keys of the same name.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	return errors.Wrap(v.BindPFlags(fs), "bind flags")
}

// ReadConfigFile loads path, or searches the default locations when path is
// empty. A missing file in the default locations is not an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
		return nil
	}

	v.SetConfigName(AppName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.moviechat")
	v.AddConfigPath("/etc/moviechat")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "read config")
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
