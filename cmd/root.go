package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/heartmatch/heartmatch/internal/gateway"
	"github.com/heartmatch/heartmatch/internal/gateway/gemini"
	applogger "github.com/heartmatch/heartmatch/internal/logger"
	"github.com/heartmatch/heartmatch/internal/secrets"
)

const (
	app = "heartmatch"

	defaultStorePath = "roster.json"
)

type Config struct {
	Store    string          `mapstructure:"store"`
	AI       *AIConfig       `mapstructure:"ai"`
	Matching *MatchingConfig `mapstructure:"matching"`
	Support  *SupportConfig  `mapstructure:"support"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Ollama   *OllamaConfig `mapstructure:"ollama"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type OllamaConfig struct {
	Endpoint       string   `mapstructure:"endpoint"`
	Models         []string `mapstructure:"models"`
	TimeoutSeconds int      `mapstructure:"timeout-seconds"`
	Temperature    float64  `mapstructure:"temperature"`
	NumPredict     int      `mapstructure:"num-predict"`
	APIKeyFile     string   `mapstructure:"api-key-file"`
	MaxLogLength   int      `mapstructure:"max-log-length"`
}

type GeminiConfig struct {
	Model      string `mapstructure:"model"`
	APIKeyFile string `mapstructure:"api-key-file"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type MatchingConfig struct {
	TopK           int      `mapstructure:"top-k"`
	Workers        int      `mapstructure:"workers"`
	MaxPromptChars int      `mapstructure:"max-prompt-chars"`
	Criteria       []string `mapstructure:"criteria"`
}

type SupportConfig struct {
	Models         []string `mapstructure:"models"`
	CrisisKeywords []string `mapstructure:"crisis-keywords"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "heartmatch scores child/family placement compatibility with local language models",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.ollama.api-key-file", "OLLAMA_API_KEY_FILE"); err != nil {
		log.Fatalf("binding OLLAMA_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is heartmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is only needed for the match and chat commands. Both run fine on
	// built-in defaults, so a missing config file is not an error.
	if matchCmd.CalledAs() == "" && chatCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// Defaults cover everything, so only an explicitly requested or present
	// but broken config file is fatal.
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound && cfgFile == "" {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	return config, nil
}

func (c *Config) storePath() string {
	if c != nil && strings.TrimSpace(c.Store) != "" {
		return c.Store
	}
	return defaultStorePath
}

func (c *Config) models() []string {
	if c != nil && c.AI != nil && c.AI.Ollama != nil && len(c.AI.Ollama.Models) > 0 {
		return c.AI.Ollama.Models
	}
	return nil
}

// newGenerator builds the configured gateway backend. The default is a local
// Ollama endpoint; gemini routes everything to the Gemini API instead.
func newGenerator(ctx context.Context, config *Config, logger *zap.Logger) (gateway.Generator, error) {
	var ai AIConfig
	if config != nil && config.AI != nil {
		ai = *config.AI
	}

	provider := strings.TrimSpace(strings.ToLower(ai.Provider))
	switch provider {
	case "", "ollama":
		return newOllamaClient(ai.Ollama, logger)
	case "gemini":
		return newGeminiGenerator(ctx, ai.Gemini, logger)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", ai.Provider)
	}
}

func newOllamaClient(cfg *OllamaConfig, logger *zap.Logger) (*gateway.Client, error) {
	if cfg == nil {
		cfg = &OllamaConfig{}
	}

	apiKey, err := secrets.LoadOptional(secrets.Source{
		Name: "ollama api key",
		File: cfg.APIKeyFile,
		Env:  "OLLAMA_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("loading ollama api key: %w", err)
	}

	gatewayCfg := gateway.Config{
		Endpoint:     cfg.Endpoint,
		Temperature:  cfg.Temperature,
		NumPredict:   cfg.NumPredict,
		APIKey:       apiKey,
		MaxLogLength: cfg.MaxLogLength,
	}
	if cfg.TimeoutSeconds > 0 {
		gatewayCfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return gateway.NewClient(gatewayCfg, logger), nil
}

func newGeminiGenerator(ctx context.Context, cfg *GeminiConfig, logger *zap.Logger) (*gemini.Generator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai provider is gemini")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := applogger.WithCommonFields(logger, "gemini", cfg.Model)

	return gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries, genLogger)
}
