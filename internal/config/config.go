package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// RedisAddr enables the lobby cache when set; empty disables caching.
	RedisAddr      string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisNamespace string        `mapstructure:"redis_namespace" yaml:"redis_namespace"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// SupersedeConnections controls the duplicate-session policy: when true
	// a new websocket session for a player evicts the old one, when false
	// the new session is rejected.
	SupersedeConnections bool `mapstructure:"supersede_connections" yaml:"supersede_connections"`

	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		LogLevel:             "info",
		DatabasePath:         "jeopardy.db",
		RedisNamespace:       "jeopardy",
		CacheTTL:             5 * time.Minute,
		JWTSecret:            "change-me",
		JWTIssuer:            "jeopardy-api",
		JWTAudience:          "jeopardy-api",
		JWTTTL:               24 * time.Hour,
		SupersedeConnections: true,
		PageSize:             20,
	}
}
