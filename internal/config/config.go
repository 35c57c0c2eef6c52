package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string        `mapstructure:"database_url"`
	ServerPort  string        `mapstructure:"server_port"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	Fcm         FcmConfig     `mapstructure:"fcm"`
	Cleanup     CleanupConfig `mapstructure:"cleanup"`
}

type FcmConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	ServerKey      string `mapstructure:"server_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type CleanupConfig struct {
	BatchSize       int `mapstructure:"batch_size"`
	MaxConcurrency  int `mapstructure:"max_concurrency"`
	CooldownMinutes int `mapstructure:"cooldown_minutes"`
	BatchPauseMs    int `mapstructure:"batch_pause_ms"`
}

// Load reads the configuration from a YAML file and returns a Config instance.
func Load() *Config {
	v := viper.New()

	// Look for config in the current directory and ./config
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.AddConfigPath("./config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("Error unmarshalling config: %v", err)
	}

	// Fallback defaults
	if config.ServerPort == "" {
		config.ServerPort = "8080"
	}

	if config.JWTSecret == "" {
		log.Fatal("JWT secret must be set in the config file")
	}

	if config.Fcm.Endpoint == "" {
		config.Fcm.Endpoint = "https://fcm.googleapis.com/fcm/send"
	}
	if config.Fcm.TimeoutSeconds == 0 {
		config.Fcm.TimeoutSeconds = 5
	}

	if config.Cleanup.BatchSize == 0 {
		config.Cleanup.BatchSize = 100
	}
	if config.Cleanup.MaxConcurrency == 0 {
		config.Cleanup.MaxConcurrency = 25
	}
	if config.Cleanup.CooldownMinutes == 0 {
		config.Cleanup.CooldownMinutes = 15
	}
	if config.Cleanup.BatchPauseMs == 0 {
		config.Cleanup.BatchPauseMs = 100
	}

	return &config
}
