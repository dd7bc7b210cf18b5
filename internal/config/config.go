package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultBaseURL = "https://medsetu-backend.onrender.com"

type Config struct {
	Port       string        `mapstructure:"port"`
	LogLevel   string        `mapstructure:"log_level"`
	RenderWait time.Duration `mapstructure:"render_wait"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	API        APIConfig     `mapstructure:"api"`
	Kafka      KafkaConfig   `mapstructure:"kafka"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig is optional. An empty Host disables lookup events.
type KafkaConfig struct {
	Host  string
	Topic string `mapstructure:"topic"`
}

func Init(path string) (*Config, error) {
	var cfg Config
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("medsetu")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file, path = %s, err = %s", path, err.Error())
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cfg: %w", err)
	}

	cfg.Kafka.Host = os.Getenv("KAFKA_HOST")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("render_wait", 1500*time.Millisecond)
	v.SetDefault("session_ttl", 30*time.Minute)
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("kafka.topic", "codeLookups")
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port must be set")
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is not a valid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) url, got %q", c.API.BaseURL)
	}

	if c.RenderWait < 0 {
		return fmt.Errorf("render_wait must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}

	return nil
}

func (c *Config) KafkaEnabled() bool {
	return c.Kafka.Host != ""
}
