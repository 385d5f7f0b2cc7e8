package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/Belphemur/flash/internal/bucket"
	"github.com/Belphemur/flash/internal/payload"
	"github.com/Belphemur/flash/internal/store"
)

type Config struct {
	ServiceName    string                 `mapstructure:"service_name"`
	LogLevel       string                 `mapstructure:"log_level"`
	Compression    string                 `mapstructure:"compression"` // snappy, zstd or brotli
	Connection     store.ConnectionConfig `mapstructure:"connection"`
	Buckets        bucket.ServiceConfig   `mapstructure:"buckets"`
	CircuitBreaker store.BreakerConfig    `mapstructure:"circuit_breaker"` // durations as Go duration strings
	Monitoring     struct {
		Enabled bool   `mapstructure:"enabled"`
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
	} `mapstructure:"monitoring"`
	Logging struct {
		CacheInfoLevel bool `mapstructure:"cache_info_level"`
	} `mapstructure:"logging"`
	Sentry struct {
		DSN         string `mapstructure:"dsn"`
		Environment string `mapstructure:"environment"`
	} `mapstructure:"sentry"`
	Server struct {
		Port    int    `mapstructure:"port"`
		Address string `mapstructure:"address"`
	} `mapstructure:"server"`
	Probe struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"probe"`
}

var (
	mu           sync.RWMutex
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	// Initialize zerolog with console writer for human-readable output
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stdout,
		NoColor: false,
	}).With().Timestamp().Logger()
}

func setDefaults(v *viper.Viper) {
	breaker := store.DefaultBreakerConfig()
	v.SetDefault("service_name", "flash")
	v.SetDefault("log_level", "info")
	v.SetDefault("compression", payload.Snappy)
	v.SetDefault("circuit_breaker.timeout", breaker.Timeout)
	v.SetDefault("circuit_breaker.force_closed", breaker.ForceClosed)
	v.SetDefault("circuit_breaker.failure_rate_threshold", breaker.FailureRateThreshold)
	v.SetDefault("circuit_breaker.failure_execution_threshold", breaker.FailureExecutionThreshold)
	v.SetDefault("circuit_breaker.failure_period", breaker.FailurePeriod)
	v.SetDefault("circuit_breaker.delay", breaker.Delay)
	v.SetDefault("circuit_breaker.success_threshold", breaker.SuccessThreshold)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.port", 9090)
	v.SetDefault("logging.cache_info_level", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("probe.interval", 10*time.Second)
}

// Load reads config.yaml from "." or "./config", overlays APP_* environment
// variables, stores the result as the global config and applies its log level.
func Load() (*Config, error) {
	return load(viper.New(), ".", "./config")
}

func load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	// Environment variable support
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("monitoring.enabled", "APP_MONITORING_ENABLED", "LIBRARY_MONITORING_ENABLED")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	configureLogger(config.LogLevel)
	mu.Lock()
	globalConfig = &config
	mu.Unlock()
	return &config, nil
}

func configureLogger(levelName string) {
	level := zerolog.InfoLevel // default
	if levelName != "" {
		if parsedLevel, err := zerolog.ParseLevel(levelName); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", levelName).Msg("Invalid log level, using default 'info'")
		}
	}

	zerolog.SetGlobalLevel(level)
	mu.Lock()
	logger = logger.Level(level)
	mu.Unlock()
}

// GetConfig returns the last loaded config, or nil before Load.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

func GetLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
