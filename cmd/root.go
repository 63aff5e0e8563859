package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "career-compass"
)

type Config struct {
	Location         string         `mapstructure:"location"`
	Questions        []string       `mapstructure:"questions"`
	ExcludeCompanies []string       `mapstructure:"exclude-companies"`
	AI               *AIConfig      `mapstructure:"ai"`
	Search           *SearchConfig  `mapstructure:"search"`
	Session          *SessionConfig `mapstructure:"session"`
	Retry            *RetryConfig   `mapstructure:"retry"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SearchConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	EngineID   string `mapstructure:"engine-id"`
	MaxResults int    `mapstructure:"max-results"`
}

type SessionConfig struct {
	MinTraits      int     `mapstructure:"min-traits"`
	MinConfidence  float64 `mapstructure:"min-confidence"`
	MaxTurns       int     `mapstructure:"max-turns"`
	TopTraits      int     `mapstructure:"top-traits"`
	MaxPostings    int     `mapstructure:"max-postings"`
	AbortThreshold int     `mapstructure:"abort-threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "career-compass is a cli that profiles your traits through a short quiz and matches you with job postings",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("search.api-key-file", "SEARCH_API_KEY_FILE"); err != nil {
		log.Fatalf("binding SEARCH_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("search.engine-id", "SEARCH_ENGINE_ID"); err != nil {
		log.Fatalf("binding SEARCH_ENGINE_ID environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is career-compass.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
