package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "applypilot"
)

type Config struct {
	Server    *ServerConfig    `mapstructure:"server"`
	Database  *DatabaseConfig  `mapstructure:"database"`
	JobSource *JobSourceConfig `mapstructure:"job-source"`
	Runner    *RunnerConfig    `mapstructure:"runner"`
	AI        *AIConfig        `mapstructure:"ai"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL           string `mapstructure:"url"`
	URLFile       string `mapstructure:"url-file"`
	RunMigrations bool   `mapstructure:"run-migrations"`
}

type JobSourceConfig struct {
	BaseURL   string `mapstructure:"base-url"`
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

type RunnerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxWorkers  int           `mapstructure:"max-workers"`
	CallTimeout time.Duration `mapstructure:"call-timeout"`
	Pacing      time.Duration `mapstructure:"pacing"`
	Window      *WindowConfig `mapstructure:"business-hours"`
}

type WindowConfig struct {
	StartHour    int    `mapstructure:"start-hour"`
	EndHour      int    `mapstructure:"end-hour"`
	WeekdaysOnly bool   `mapstructure:"weekdays-only"`
	Timezone     string `mapstructure:"timezone"`
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

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "applypilot runs automated, quota-limited job-application campaigns",
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
	if err := viper.BindEnv("database.url", "DATABASE_URL"); err != nil {
		log.Fatalf("binding DATABASE_URL environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is applypilot.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
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
