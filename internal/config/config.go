package config

import (
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Email     EmailConfig     `mapstructure:"email"`
	Directory DirectoryConfig `mapstructure:"directory"`
	TTL       TTLConfig       `mapstructure:"ttl"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id"`
	Topics          []string `mapstructure:"topics"`
}

type AuthConfig struct {
	// JWTSecret verifies platform-issued HS256 tokens.
	JWTSecret string `mapstructure:"jwt_secret"`
}

type EmailConfig struct {
	PostmarkServerToken  string `mapstructure:"postmark_server_token"`
	PostmarkAccountToken string `mapstructure:"postmark_account_token"`
	Sender               string `mapstructure:"sender"`
}

type DirectoryConfig struct {
	// BaseURL of the account service's internal API.
	BaseURL      string `mapstructure:"base_url"`
	ServiceToken string `mapstructure:"service_token"`
}

type TTLConfig struct {
	RetentionDays     int `mapstructure:"retention_days"`      // Default: 90
	PurgeIntervalMins int `mapstructure:"purge_interval_mins"` // Default: 60
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: KIDORA_NOTIF_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "kidora_notification")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group_id", "kidora-notification-group")
	v.SetDefault("kafka.topics", []string{"task-events", "reward-events", "payment-events", "notification-commands"})
	v.SetDefault("auth.jwt_secret", "dev-secret")
	v.SetDefault("email.sender", "no-reply@kidora.app")
	v.SetDefault("directory.base_url", "http://localhost:8081")
	v.SetDefault("ttl.retention_days", 90)
	v.SetDefault("ttl.purge_interval_mins", 60)

	// Environment variables (e.g. DATABASE_HOST -> database.host)
	v.SetEnvPrefix("KIDORA_NOTIF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also support simple env vars without prefix for Docker Compose convenience
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("email.postmark_server_token", "POSTMARK_SERVER_TOKEN")
	v.BindEnv("email.postmark_account_token", "POSTMARK_ACCOUNT_TOKEN")
	v.BindEnv("email.sender", "EMAIL_SENDER")
	v.BindEnv("directory.base_url", "ACCOUNT_SERVICE_URL")
	v.BindEnv("directory.service_token", "ACCOUNT_SERVICE_TOKEN")
	v.BindEnv("server.port", "PORT")

	// Try loading config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" dbname=" + d.Name +
		" user=" + d.User +
		" password=" + d.Password +
		" sslmode=disable"
}
