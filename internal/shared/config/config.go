package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Bold     BoldConfig     `mapstructure:"bold"`
	Wompi    WompiConfig    `mapstructure:"wompi"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds authentication configuration.
// Tokens are issued by the external identity system; this service only validates them.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// PaymentsConfig holds payment pipeline configuration.
type PaymentsConfig struct {
	// RedirectBaseURL is the frontend base URL buyers return to after checkout.
	RedirectBaseURL string `mapstructure:"redirect_base_url"`
	// LinkExpiry is how long a created payment link stays valid.
	LinkExpiry time.Duration `mapstructure:"link_expiry"`
	// GatewayTimeout bounds every outbound gateway HTTP call.
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	// ReconcileInterval is how often the reconciler sweeps pending payments.
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	// ReconcileAfter is the age at which a pending payment is re-verified
	// against its gateway.
	ReconcileAfter time.Duration `mapstructure:"reconcile_after"`
	// PendingRetention is the age past which an unsettled pending payment
	// is abandoned and deleted.
	PendingRetention time.Duration `mapstructure:"pending_retention"`
}

// BoldConfig holds Bold.co gateway configuration.
type BoldConfig struct {
	APIBaseURL    string `mapstructure:"api_base_url"`
	APIKey        string `mapstructure:"api_key"`
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	// PaymentMethods are the methods enabled on created payment links.
	PaymentMethods []string `mapstructure:"payment_methods"`
}

// WompiConfig holds Wompi gateway configuration.
type WompiConfig struct {
	APIBaseURL   string `mapstructure:"api_base_url"`
	PublicKey    string `mapstructure:"public_key"`
	PrivateKey   string `mapstructure:"private_key"`
	EventsSecret string `mapstructure:"events_secret"`
}

// SMTPConfig holds confirmation email configuration.
type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
	DashboardURL string `mapstructure:"dashboard_url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Set config file name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/veralix")

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	// Read from environment variables
	v.SetEnvPrefix("VERALIX")
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if secret := os.Getenv("VERALIX_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if password := os.Getenv("VERALIX_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("VERALIX_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("VERALIX_BOLD_API_KEY"); key != "" {
		cfg.Bold.APIKey = key
	}
	if key := os.Getenv("VERALIX_BOLD_SECRET_KEY"); key != "" {
		cfg.Bold.SecretKey = key
	}
	if secret := os.Getenv("VERALIX_BOLD_WEBHOOK_SECRET"); secret != "" {
		cfg.Bold.WebhookSecret = secret
	}
	if key := os.Getenv("VERALIX_WOMPI_PRIVATE_KEY"); key != "" {
		cfg.Wompi.PrivateKey = key
	}
	if secret := os.Getenv("VERALIX_WOMPI_EVENTS_SECRET"); secret != "" {
		cfg.Wompi.EventsSecret = secret
	}
	if password := os.Getenv("VERALIX_SMTP_PASSWORD"); password != "" {
		cfg.SMTP.Password = password
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "veralix")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Payment defaults
	v.SetDefault("payments.redirect_base_url", "http://localhost:3000")
	v.SetDefault("payments.link_expiry", 24*time.Hour)
	v.SetDefault("payments.gateway_timeout", 15*time.Second)
	v.SetDefault("payments.reconcile_interval", 10*time.Minute)
	v.SetDefault("payments.reconcile_after", 15*time.Minute)
	v.SetDefault("payments.pending_retention", 48*time.Hour)

	// Gateway defaults
	v.SetDefault("bold.api_base_url", "https://integrations.api.bold.co")
	v.SetDefault("bold.payment_methods", []string{"CREDIT_CARD", "PSE", "NEQUI", "BOTON_BANCOLOMBIA"})
	v.SetDefault("wompi.api_base_url", "https://api.wompi.co/v1")

	// SMTP defaults
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "Veralix")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
