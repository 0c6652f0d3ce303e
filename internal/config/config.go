// Package config layers defaults, an optional partimento.yaml, PARTIMENTO_*
// environment variables and command-line flags into one Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Yates-Labs/partimento/internal/catalog"
	"github.com/Yates-Labs/partimento/internal/llm"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/prompt"
)

const (
	EnvPrefix  = "PARTIMENTO"
	FileName   = "partimento"
	DefaultDir = "generated"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved runtime configuration.
type Config struct {
	LLM        llm.LLMConfig
	OutputRoot string
	Style      string
	StyleCards string
	Catalog    catalog.Config
	AudioTool  string
	LogLevel   slog.Level

	// File is the config file that was read, or "" when none was found.
	File string
}

// flagKeys maps persistent flag names to configuration keys.
var flagKeys = map[string]string{
	"provider":    "llm.provider",
	"model":       "llm.model",
	"temperature": "llm.temperature",
	"output-root": "output.root",
	"style":       "style",
	"log-level":   "log.level",
}

// SetDefaults registers every recognised key with its default.
func SetDefaults(v *viper.Viper) {
	d := llm.DefaultLLMConfig()
	v.SetDefault("llm.provider", d.Provider)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", d.Temperature)
	v.SetDefault("llm.max_tokens", d.MaxTokens)
	v.SetDefault("llm.timeout", d.Timeout)
	v.SetDefault("llm.max_retries", d.MaxRetries)
	v.SetDefault("output.root", DefaultDir)
	v.SetDefault("style", prompt.DefaultStyle)
	v.SetDefault("style_cards", "")
	v.SetDefault("catalog.backend", catalog.BackendGitHub)
	v.SetDefault("catalog.owner", "")
	v.SetDefault("catalog.repo", "")
	v.SetDefault("catalog.branch", catalog.DefaultBranch)
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.collection", catalog.DefaultCollection)
	v.SetDefault("audio.converter", notation.DefaultAudioTool)
	v.SetDefault("log.level", "info")
}

// BindFlags binds the persistent flags that exist in flags to their keys.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads configuration into v. When file is empty, partimento.yaml is
// looked up in the working directory and $HOME/.config/partimento; a
// missing file is not an error. An explicitly named file must exist.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%w: read config: %w", ErrInvalidConfig, err)
		}
	}

	cfg := Config{
		LLM: llm.LLMConfig{
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			Model:       v.GetString("llm.model"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			Timeout:     v.GetDuration("llm.timeout"),
			MaxRetries:  v.GetInt("llm.max_retries"),
		},
		OutputRoot: v.GetString("output.root"),
		Style:      v.GetString("style"),
		StyleCards: v.GetString("style_cards"),
		Catalog: catalog.Config{
			Backend:    strings.ToLower(v.GetString("catalog.backend")),
			Owner:      v.GetString("catalog.owner"),
			Repo:       v.GetString("catalog.repo"),
			Branch:     v.GetString("catalog.branch"),
			Path:       v.GetString("catalog.path"),
			Collection: v.GetString("catalog.collection"),
			Token:      os.Getenv("GITHUB_TOKEN"),
		},
		AudioTool: v.GetString("audio.converter"),
		File:      v.ConfigFileUsed(),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return Config{}, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch c.LLM.Provider {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("%w: llm.provider %q (want %s or %s)", ErrInvalidConfig, c.LLM.Provider, llm.ProviderOpenAI, llm.ProviderAnthropic)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature %v outside [0, 2]", ErrInvalidConfig, c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("%w: llm.max_tokens must be positive", ErrInvalidConfig)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("%w: llm.timeout must be positive", ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: llm.max_retries must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		return fmt.Errorf("%w: output.root is empty", ErrInvalidConfig)
	}
	switch c.Catalog.Backend {
	case catalog.BackendGitHub, catalog.BackendGit:
	default:
		return fmt.Errorf("%w: catalog.backend %q", ErrInvalidConfig, c.Catalog.Backend)
	}
	return nil
}

