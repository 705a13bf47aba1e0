package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Session SessionConfig `mapstructure:"session"`
	Users   []DemoUser    `mapstructure:"users"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type AuthConfig struct {
	// Secret signs every token; the broker holds the same value. Required.
	Secret                      string        `mapstructure:"secret"`
	ConnectionTokenTTLSeconds   int           `mapstructure:"connection_token_ttl_seconds"`
	SubscriptionTokenTTLSeconds int           `mapstructure:"subscription_token_ttl_seconds"`
	ClockSkewLeeway             time.Duration `mapstructure:"clock_skew_leeway"`
	// SubscriptionTokenMode makes the subscribe callback return a freshly
	// minted channel token instead of a bare allow.
	SubscriptionTokenMode bool `mapstructure:"subscription_token_mode"`
	AllowAnonymous        bool `mapstructure:"allow_anonymous"`
}

// ConnectionTokenTTL returns the connection TTL as a duration. Zero means
// connections are kept alive without refresh.
func (c AuthConfig) ConnectionTokenTTL() time.Duration {
	return time.Duration(c.ConnectionTokenTTLSeconds) * time.Second
}

// SubscriptionTokenTTL returns the subscription TTL as a duration.
func (c AuthConfig) SubscriptionTokenTTL() time.Duration {
	return time.Duration(c.SubscriptionTokenTTLSeconds) * time.Second
}

type PolicyConfig struct {
	Mode              string        `mapstructure:"mode"`
	AllowedNamespaces []string      `mapstructure:"allowed_namespaces"`
	UniChannels       []string      `mapstructure:"uni_channels"`
	RoleLookupTimeout time.Duration `mapstructure:"role_lookup_timeout"`
}

type GatewayConfig struct {
	APIURL           string        `mapstructure:"api_url"`
	APIKey           string        `mapstructure:"api_key"`
	Timeout          time.Duration `mapstructure:"timeout"`
	SignatureSecret  string        `mapstructure:"signature_secret"`
	RequireSignature bool          `mapstructure:"require_signature"`
}

type SessionConfig struct {
	// Backend selects the store implementation: "redis" or "memory".
	Backend    string        `mapstructure:"backend"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

// DemoUser is a static login credential for development deployments.
type DemoUser struct {
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Role     string `mapstructure:"role"`
}

// Load reads config.yaml from the working directory or ./config.
func Load() (*Config, error) {
	return load(func() {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	})
}

// LoadWithPath reads the config file at an explicit path.
func LoadWithPath(path string) (*Config, error) {
	return load(func() {
		viper.SetConfigFile(path)
	})
}

func load(locate func()) (*Config, error) {
	viper.Reset()
	locate()

	setDefaults()
	bindEnv()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout", "30s")
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file_path", "pushgated.log")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("auth.secret", "")
	viper.SetDefault("auth.connection_token_ttl_seconds", 300)
	viper.SetDefault("auth.subscription_token_ttl_seconds", 60)
	viper.SetDefault("auth.clock_skew_leeway", "5s")
	viper.SetDefault("auth.subscription_token_mode", false)
	viper.SetDefault("auth.allow_anonymous", false)
	viper.SetDefault("policy.mode", "allow_all")
	viper.SetDefault("policy.allowed_namespaces", []string{})
	viper.SetDefault("policy.uni_channels", []string{})
	viper.SetDefault("policy.role_lookup_timeout", "2s")
	viper.SetDefault("gateway.api_url", "http://localhost:8000/api")
	viper.SetDefault("gateway.api_key", "")
	viper.SetDefault("gateway.timeout", "5s")
	viper.SetDefault("gateway.signature_secret", "")
	viper.SetDefault("gateway.require_signature", false)
	viper.SetDefault("session.backend", "memory")
	viper.SetDefault("session.ttl", "1h")
	viper.SetDefault("session.cookie_name", "pushgate_session")
}

func bindEnv() {
	viper.BindEnv("auth.secret", "GATEWAY_SECRET")
	viper.BindEnv("gateway.api_url", "GATEWAY_API_URL")
	viper.BindEnv("gateway.api_key", "GATEWAY_API_KEY")
	viper.BindEnv("auth.connection_token_ttl_seconds", "CONNECTION_TOKEN_TTL_SECONDS")
	viper.BindEnv("auth.subscription_token_ttl_seconds", "SUBSCRIPTION_TOKEN_TTL_SECONDS")
}

func (c *Config) validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required (set GATEWAY_SECRET)")
	}
	if c.Auth.SubscriptionTokenTTLSeconds <= 0 {
		return fmt.Errorf("auth.subscription_token_ttl_seconds must be positive")
	}
	if c.Auth.ConnectionTokenTTLSeconds < 0 {
		return fmt.Errorf("auth.connection_token_ttl_seconds must not be negative")
	}
	switch c.Session.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown session backend: %s", c.Session.Backend)
	}
	return nil
}

// FindUser matches demo credentials at login.
func (c *Config) FindUser(username, password string) (*DemoUser, bool) {
	for i := range c.Users {
		u := &c.Users[i]
		if u.Username == username && u.Password == password {
			return u, true
		}
	}
	return nil, false
}
