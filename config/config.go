package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	RabbitMQ        RabbitMQConfig `yaml:"rabbitmq"`
	Kafka           KafkaConfig    `yaml:"kafka"`
	Database        DatabaseConfig `yaml:"database"`
	Redis           RedisConfig    `yaml:"redis"`
	DeliveryService ServiceConfig  `yaml:"delivery_service"`
	PackageService  ServiceConfig  `yaml:"package_service"`
	UserService     ServiceConfig  `yaml:"user_service"`
}

type RabbitMQConfig struct {
	URI      string `yaml:"uri"`
	Exchange string `yaml:"exchange"`
	// Empty means nacked messages are discarded by the broker.
	DeadLetterExchange string `yaml:"dead_letter_exchange"`
	MaxRetries         int    `yaml:"max_retries"`
	RetryBaseDelayMs   int    `yaml:"retry_base_delay_ms"`
}

type KafkaConfig struct {
	Host                    string `yaml:"host"`
	Port                    int    `yaml:"port"`
	DeadLetterTopicName     string `yaml:"dead_letter_topic_name"`
	DeadLetterConsumerGroup string `yaml:"dead_letter_consumer_group"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ServiceConfig struct {
	HTTPAddr              string `yaml:"http_addr"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`

	// delivery-service only
	CurrentStatusTTLSeconds  int `yaml:"current_status_ttl_seconds"`
	DriverRateLimitPerMinute int `yaml:"driver_rate_limit_per_minute"`
}

// LoadConfig reads the YAML file (if any), then .env, then process environment.
// An empty filename is allowed: the result is built from the environment alone.
func LoadConfig(filename string) (*Config, error) {
	var config Config

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	}

	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RABBITMQ_URI"); v != "" {
		c.RabbitMQ.URI = v
	}
	if v := os.Getenv("RABBITMQ_DEAD_LETTER_EXCHANGE"); v != "" {
		c.RabbitMQ.DeadLetterExchange = v
	}

	ports := []struct {
		env  string
		addr *string
	}{
		{"DELIVERY_SERVICE_PORT", &c.DeliveryService.HTTPAddr},
		{"PACKAGE_SERVICE_PORT", &c.PackageService.HTTPAddr},
		{"USER_SERVICE_PORT", &c.UserService.HTTPAddr},
	}
	for _, p := range ports {
		port, ok, err := envPort(p.env)
		if err != nil {
			return err
		}
		if ok {
			*p.addr = ":" + port
		}
	}
	return nil
}

// envPort reads a TCP port from the environment. Unset or empty is not an error,
// anything else must be a number in 1..65535.
func envPort(name string) (string, bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 65535 {
		return "", false, fmt.Errorf("invalid %s %q: want a port number in 1..65535", name, v)
	}
	return v, true, nil
}

// PostgresConnString builds a pgx connection string, defaulting sslmode to "disable".
func (c DatabaseConfig) PostgresConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c KafkaConfig) Brokers() []string {
	if c.Host == "" {
		return nil
	}
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}
