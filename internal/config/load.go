package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BREW_VULNS_API_URL.
const EnvPrefix = "BREW_VULNS"

// Settings is the typed view of the loaded configuration.
type Settings struct {
	APIURL          string
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	BatchSize       int
	Concurrency     int
	RateLimit       float64
	MaxSummary      int
	Severity        string
	BrewPath        string
	IgnoreFile      string
	LogFile         string
	MetricsFile     string
	SlackWebhookURL string
	Verbose         bool
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("api_url", "https://api.osv.dev/v1")
	viper.SetDefault("connect_timeout", "10s")
	viper.SetDefault("read_timeout", "30s")
	viper.SetDefault("batch_size", 1000)
	viper.SetDefault("concurrency", 0)
	viper.SetDefault("rate_limit", 0)
	viper.SetDefault("max_summary", 60)
	viper.SetDefault("severity", "")
	viper.SetDefault("brew_path", "brew")
	viper.SetDefault("ignore_file", "")
	viper.SetDefault("log_file", "")
	viper.SetDefault("metrics_file", "")
	viper.SetDefault("notifications.slack.webhook_url", "")
	viper.SetDefault("verbose", false)
}

// Load initializes the configuration from .env, an optional config file and
// environment variables. A missing default config file is not an error; a
// missing explicit one is.
func Load(cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".brew-vulns")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Current returns the settings as currently resolved by viper.
func Current() Settings {
	return Settings{
		APIURL:          strings.TrimSuffix(viper.GetString("api_url"), "/"),
		ConnectTimeout:  GetDuration("connect_timeout"),
		ReadTimeout:     GetDuration("read_timeout"),
		BatchSize:       viper.GetInt("batch_size"),
		Concurrency:     viper.GetInt("concurrency"),
		RateLimit:       viper.GetFloat64("rate_limit"),
		MaxSummary:      viper.GetInt("max_summary"),
		Severity:        viper.GetString("severity"),
		BrewPath:        viper.GetString("brew_path"),
		IgnoreFile:      viper.GetString("ignore_file"),
		LogFile:         viper.GetString("log_file"),
		MetricsFile:     viper.GetString("metrics_file"),
		SlackWebhookURL: viper.GetString("notifications.slack.webhook_url"),
		Verbose:         viper.GetBool("verbose"),
	}
}

// GetDuration reads key as a duration. Bare integers are seconds.
func GetDuration(key string) time.Duration {
	raw := strings.TrimSpace(viper.GetString(key))
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return viper.GetDuration(key)
}
