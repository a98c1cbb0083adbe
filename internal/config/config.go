package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/socialfeed/feed-services/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Comments  CommentsConfig
	Media     MediaConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig: an empty URI selects the in-memory store.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
	AllowInsecure  bool
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type CommentsConfig struct {
	// DeletePolicy is "any" (any authenticated caller) or "owner"
	// (comment author or post author).
	DeletePolicy string
	StoreTimeout time.Duration
	UserCacheTTL time.Duration
}

type MediaConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Bucket         string
	MaxUploadBytes int64
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5020")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_DATABASE", "socialfeed")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("COMMENTS_DELETE_POLICY", "any")
	v.SetDefault("COMMENTS_STORE_TIMEOUT_MS", 0)
	v.SetDefault("COMMENTS_USER_CACHE_TTL", 300)
	v.SetDefault("MEDIA_BUCKET", "feed-media")
	v.SetDefault("MEDIA_MAX_UPLOAD_BYTES", 10<<20)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          v.GetString("KEYCLOAK_URL"),
			Realm:        v.GetString("KEYCLOAK_REALM"),
			ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			AllowInsecure:  v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Comments: CommentsConfig{
			DeletePolicy: strings.ToLower(strings.TrimSpace(v.GetString("COMMENTS_DELETE_POLICY"))),
			StoreTimeout: time.Duration(v.GetInt("COMMENTS_STORE_TIMEOUT_MS")) * time.Millisecond,
			UserCacheTTL: time.Duration(v.GetInt("COMMENTS_USER_CACHE_TTL")) * time.Second,
		},
		Media: MediaConfig{
			Endpoint:       v.GetString("MEDIA_ENDPOINT"),
			AccessKey:      v.GetString("MEDIA_ACCESS_KEY"),
			SecretKey:      v.GetString("MEDIA_SECRET_KEY"),
			UseSSL:         v.GetBool("MEDIA_USE_SSL"),
			Bucket:         v.GetString("MEDIA_BUCKET"),
			MaxUploadBytes: v.GetInt64("MEDIA_MAX_UPLOAD_BYTES"),
		},
	}

	// Basic validation
	if cfg.JWT.Secret == "" && cfg.Keycloak.URL == "" {
		logger.Warn("neither JWT_SECRET nor KEYCLOAK_URL is set; authenticated routes will reject every request")
	}
	if cfg.MongoDB.URI == "" {
		logger.Warn("MONGODB_URI is not set; using the in-memory document store")
	}
	switch cfg.Comments.DeletePolicy {
	case "any", "owner":
	default:
		logger.Warnf("unknown COMMENTS_DELETE_POLICY %q, falling back to \"any\"", cfg.Comments.DeletePolicy)
		cfg.Comments.DeletePolicy = "any"
	}

	return cfg, nil
}
