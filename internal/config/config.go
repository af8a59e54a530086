package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide configuration surface, loaded once at
// startup from .env and the environment.
type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AdminKey    string `mapstructure:"ADMIN_KEY"`

	MaxBatch int `mapstructure:"MAX_BATCH"`

	NLPConcurrency int64  `mapstructure:"NLP_CONCURRENCY"`
	NLPModelID     string `mapstructure:"NLP_MODEL_ID"`
	NLPBaseURL     string `mapstructure:"NLP_BASE_URL"`
	NLPAPIKey      string `mapstructure:"NLP_API_KEY"`

	GeocoderBaseURL     string `mapstructure:"GEOCODER_BASE_URL"`
	GeocoderAPIKey      string `mapstructure:"GEOCODER_API_KEY"`
	GeocoderConcurrency int64  `mapstructure:"GEOCODER_CONCURRENCY"`

	CountryDefault string        `mapstructure:"COUNTRY_DEFAULT"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	MaxUploadMB    int64         `mapstructure:"MAX_UPLOAD_MB"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)

	v.SetDefault("MAX_BATCH", 50)

	v.SetDefault("NLP_CONCURRENCY", 6)
	v.SetDefault("NLP_MODEL_ID", "gemma3:1b")

	v.SetDefault("GEOCODER_CONCURRENCY", 5)
	v.SetDefault("COUNTRY_DEFAULT", "Казахстан")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
