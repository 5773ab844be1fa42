package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config wraps a viper instance bound to VOTE_* environment variables.
type Config struct {
	v *viper.Viper
}

// Load builds the configuration from the environment, falling back to
// defaults suitable for local development.
func Load() *Config {
	v := viper.New()

	v.SetEnvPrefix("VOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", "8090")
	v.SetDefault("db.user", "voteuser")
	v.SetDefault("db.password", "votepassword")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.name", "votingdb")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("jwt.secret", "dev-only-secret-change-me")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("environment", "development")

	return &Config{v: v}
}

func (c *Config) ServerPort() string {
	return c.v.GetString("server.port")
}

// DSN builds the MySQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.v.GetString("db.user"),
		c.v.GetString("db.password"),
		c.v.GetString("db.host"),
		c.v.GetString("db.port"),
		c.v.GetString("db.name"),
	)
}

func (c *Config) RedisAddr() string {
	return c.v.GetString("redis.addr")
}

func (c *Config) RedisPassword() string {
	return c.v.GetString("redis.password")
}

func (c *Config) JWTSecret() string {
	return c.v.GetString("jwt.secret")
}

func (c *Config) TokenTTL() time.Duration {
	ttl := c.v.GetDuration("jwt.ttl")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return ttl
}

func (c *Config) IsDevelopment() bool {
	return c.v.GetString("environment") == "development"
}
