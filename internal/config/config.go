/**
 * @description
 * This package handles the configuration management for the portal. It uses the
 * Viper library to read configuration from environment variables and an optional
 * .env file.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultBankAPIBaseURL = "http://localhost:8080/OnlineBank/api"
	defaultSessionSecret  = "dev-portal-session-secret-change-me"
)

// Config holds all the configuration variables for the portal.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	BankAPIBaseURL     string        `mapstructure:"BANK_API_BASE_URL"`
	BankAPIFormEncoded bool          `mapstructure:"BANK_API_FORM_ENCODED"`
	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RetryMaxAttempts   int           `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryInitialDelay  time.Duration `mapstructure:"RETRY_INITIAL_DELAY"`

	SessionSecret       string        `mapstructure:"SESSION_SECRET"`
	SessionIdleTimeout  time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
	SessionGracePeriod  time.Duration `mapstructure:"SESSION_GRACE_PERIOD"`
	SessionCookieSecure bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	RememberMeDays      int           `mapstructure:"REMEMBER_ME_DAYS"`

	RedisURL       string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	ShowDemoOTP             bool `mapstructure:"SHOW_DEMO_OTP"`
	LoginRateLimitPerMinute int  `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`

	RememberCleanupSchedule string `mapstructure:"REMEMBER_CLEANUP_SCHEDULE"`
	HealthProbeSchedule     string `mapstructure:"HEALTH_PROBE_SCHEDULE"`

	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables and an optional .env
// file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("BANK_API_BASE_URL", defaultBankAPIBaseURL)
	viper.SetDefault("BANK_API_FORM_ENCODED", false)
	viper.SetDefault("REQUEST_TIMEOUT", 15*time.Second)
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	viper.SetDefault("RETRY_INITIAL_DELAY", time.Second)
	viper.SetDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	viper.SetDefault("SESSION_GRACE_PERIOD", 3*time.Second)
	viper.SetDefault("SESSION_COOKIE_SECURE", false)
	viper.SetDefault("REMEMBER_ME_DAYS", 7)
	viper.SetDefault("REDIS_KEY_PREFIX", "portal")
	viper.SetDefault("EVENTS_EXCHANGE", "portal.events")
	viper.SetDefault("SHOW_DEMO_OTP", true)
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("REMEMBER_CLEANUP_SCHEDULE", "@every 1h")
	viper.SetDefault("HEALTH_PROBE_SCHEDULE", "@every 1m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("BANK_API_BASE_URL", "BANK_API_BASE_URL", "API_BASE_URL")
	_ = viper.BindEnv("BANK_API_FORM_ENCODED")
	_ = viper.BindEnv("REQUEST_TIMEOUT")
	_ = viper.BindEnv("RETRY_MAX_ATTEMPTS")
	_ = viper.BindEnv("RETRY_INITIAL_DELAY")
	_ = viper.BindEnv("SESSION_SECRET")
	_ = viper.BindEnv("SESSION_IDLE_TIMEOUT")
	_ = viper.BindEnv("SESSION_GRACE_PERIOD")
	_ = viper.BindEnv("SESSION_COOKIE_SECURE")
	_ = viper.BindEnv("REMEMBER_ME_DAYS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("SHOW_DEMO_OTP")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("REMEMBER_CLEANUP_SCHEDULE")
	_ = viper.BindEnv("HEALTH_PROBE_SCHEDULE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.BankAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.BankAPIBaseURL), "/")
	if config.BankAPIBaseURL == "" {
		config.BankAPIBaseURL = defaultBankAPIBaseURL
	}
	config.SessionSecret = strings.TrimSpace(config.SessionSecret)
	if config.SessionSecret == "" {
		log.Println("level=warn component=config msg=\"SESSION_SECRET not set; using development secret\"")
		config.SessionSecret = defaultSessionSecret
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.RedisKeyPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisKeyPrefix), ":")
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "portal"
	}
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = 3
	}
	if config.RememberMeDays <= 0 {
		config.RememberMeDays = 7
	}

	origins := make([]string, 0, len(config.CORSAllowedOrigins))
	for _, origin := range config.CORSAllowedOrigins {
		for _, part := range strings.Split(origin, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	config.CORSAllowedOrigins = origins

	return config, nil
}

// RememberMeTTL is how long a remember-me credential stays valid.
func (c Config) RememberMeTTL() time.Duration {
	return time.Duration(c.RememberMeDays) * 24 * time.Hour
}
