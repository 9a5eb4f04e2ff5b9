package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config — конфигурация всего сервиса.
//
// Источники по возрастанию приоритета: значения по умолчанию, YAML-файл
// (--config), файл .env, переменные окружения.
type Config struct {
	DB    DBConfig    `yaml:"db"`
	HTTP  HTTPConfig  `yaml:"http"`
	GRPC  GRPCConfig  `yaml:"grpc"`
	Bot   BotConfig   `yaml:"bot"`
	Kafka KafkaConfig `yaml:"kafka"`
	Log   LogConfig   `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	StaticDir       string        `yaml:"static_dir"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int           `yaml:"max_body_bytes"`
}

type GRPCConfig struct {
	// Пустой адрес отключает gRPC health-сервер.
	Addr string `yaml:"addr"`
}

type BotConfig struct {
	Token         string `yaml:"token"`
	WebAppURL     string `yaml:"webapp_url"`
	WebhookSecret string `yaml:"webhook_secret"`
	APIEndpoint   string `yaml:"api_endpoint"`
	QueueSize     int    `yaml:"queue_size"`
}

type KafkaConfig struct {
	// Пустой список брокеров отключает публикацию событий.
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		DB: defaultDBConfig(),
		HTTP: HTTPConfig{
			Addr:            ":8000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    64 << 10,
		},
		GRPC: GRPCConfig{Addr: ":50051"},
		Bot: BotConfig{
			APIEndpoint: "https://api.telegram.org",
			QueueSize:   100,
		},
		Kafka: KafkaConfig{
			Topic:        "room-bookings",
			WriteTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load собирает конфигурацию. path может быть пустым.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// .env не обязателен, но битый файл — ошибка.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DB.applyEnv()

	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.StaticDir = getEnv("STATIC_DIR", c.HTTP.StaticDir)
	c.HTTP.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.IdleTimeout = getEnvDuration("HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout)
	c.HTTP.RequestTimeout = getEnvDuration("HTTP_REQUEST_TIMEOUT", c.HTTP.RequestTimeout)
	c.HTTP.ShutdownTimeout = getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)
	c.HTTP.MaxBodyBytes = getEnvInt("HTTP_MAX_BODY_BYTES", c.HTTP.MaxBodyBytes)

	c.GRPC.Addr = getEnv("GRPC_ADDR", c.GRPC.Addr)

	c.Bot.Token = getEnv("BOT_TOKEN", c.Bot.Token)
	c.Bot.WebAppURL = getEnv("WEBAPP_URL", c.Bot.WebAppURL)
	c.Bot.WebhookSecret = getEnv("WEBHOOK_SECRET", c.Bot.WebhookSecret)
	c.Bot.APIEndpoint = getEnv("BOT_API_ENDPOINT", c.Bot.APIEndpoint)
	c.Bot.QueueSize = getEnvInt("BOT_QUEUE_SIZE", c.Bot.QueueSize)

	c.Kafka.Brokers = getEnvList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.WriteTimeout = getEnvDuration("KAFKA_WRITE_TIMEOUT", c.Kafka.WriteTimeout)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate собирает все ошибки сразу, а не первую.
func (c *Config) Validate() error {
	errs := c.DB.validate()

	if c.Bot.Token == "" {
		errs = append(errs, "bot: BOT_TOKEN is required (it is also the initData signing secret)")
	}
	if c.Bot.WebAppURL == "" {
		errs = append(errs, "bot: WEBAPP_URL is required")
	} else if !strings.HasPrefix(c.Bot.WebAppURL, "https://") {
		errs = append(errs, fmt.Sprintf("bot: WEBAPP_URL must be https, got %s", c.Bot.WebAppURL))
	}
	if c.Bot.QueueSize <= 0 {
		errs = append(errs, fmt.Sprintf("bot: queue_size must be positive, got %d", c.Bot.QueueSize))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, "http: addr must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":     c.HTTP.ReadTimeout,
		"write_timeout":    c.HTTP.WriteTimeout,
		"idle_timeout":     c.HTTP.IdleTimeout,
		"request_timeout":  c.HTTP.RequestTimeout,
		"shutdown_timeout": c.HTTP.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("http: %s must be positive, got %s", name, d))
		}
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Sprintf("http: max_body_bytes must be positive, got %d", c.HTTP.MaxBodyBytes))
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, "kafka: topic must not be empty when brokers are set")
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
}

// LogAttrs — значения для лога старта, без секретов.
func (c *Config) LogAttrs() []any {
	return []any{
		"db_driver", c.DB.Driver,
		"db_host", c.DB.Host,
		"db_name", c.DB.Name,
		"http_addr", c.HTTP.Addr,
		"grpc_addr", c.GRPC.Addr,
		"static_dir", c.HTTP.StaticDir,
		"webapp_url", c.Bot.WebAppURL,
		"bot_token_set", c.Bot.Token != "",
		"webhook_secret_set", c.Bot.WebhookSecret != "",
		"kafka_brokers", c.Kafka.Brokers,
		"kafka_topic", c.Kafka.Topic,
		"log_level", c.Log.Level,
	}
}
