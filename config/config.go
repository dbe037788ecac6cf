// config.go

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration tree, loaded once at boot.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

// ServerConfig covers the transport-facing listeners.
type ServerConfig struct {
	WSPort       int `mapstructure:"ws_port"`
	OpsPort      int `mapstructure:"ops_port"`
	ReadTimeoutS int `mapstructure:"read_timeout_s"`
	PongWaitS    int `mapstructure:"pong_wait_s"`
}

// GameConfig covers the world simulation's tunables.
type GameConfig struct {
	TickHz               int     `mapstructure:"tick_hz"`
	BroadcastEveryTicks  int     `mapstructure:"broadcast_every_ticks"`
	PersistEveryS        int     `mapstructure:"persist_every_s"`
	MovementMaxSpeed     float64 `mapstructure:"movement_max_speed"`
	DefaultMaxSlots      int     `mapstructure:"default_max_slots"`
}

// DatabaseConfig holds the Postgres connection parameters.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig holds the Redis connection parameters. Host empty means
// Redis is not configured and callers fall back to in-memory state.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig covers password/lockout/reconnect-token policy.
type AuthConfig struct {
	JWTSecret           string `mapstructure:"jwt_secret"`
	ReconnectTokenTTLS  int    `mapstructure:"reconnect_token_ttl_s"`
	LockoutThreshold    int    `mapstructure:"lockout_threshold"`
	LockoutDurationS    int    `mapstructure:"lockout_duration_s"`
}

// CatalogConfig points at the static content directory.
type CatalogConfig struct {
	Dir string `mapstructure:"dir"`
}

// GlobalConfig is populated once by LoadConfig and read from everywhere
// else, matching the teacher's package-global config pattern.
var GlobalConfig Config

// LoadConfig reads and unmarshals the YAML file at configPath.
func LoadConfig(configPath string) error {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	return nil
}

// GetDSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetRedisAddr builds the Redis host:port address.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TickInterval converts TickHz into a time.Duration for the world loop's
// ticker.
func (g *GameConfig) TickInterval() time.Duration {
	if g.TickHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(g.TickHz)
}

// ReconnectTokenTTL converts ReconnectTokenTTLS into a time.Duration.
func (a *AuthConfig) ReconnectTokenTTL() time.Duration {
	return time.Duration(a.ReconnectTokenTTLS) * time.Second
}

// LockoutDuration converts LockoutDurationS into a time.Duration.
func (a *AuthConfig) LockoutDuration() time.Duration {
	return time.Duration(a.LockoutDurationS) * time.Second
}
