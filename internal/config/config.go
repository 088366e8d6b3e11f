package config

import (
	"log"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Bot       BotConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type BotConfig struct {
	AdminIDs    []int64
	Live        bool
	Brand       string
	Tagline     string
	MemoryLimit int
	QueueSize   int
}

type StorageConfig struct {
	CatalogFile    string
	NFTDir         string
	MilestonesFile string
	MigrationsDir  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	// Requests is the per-sender budget applied by the bot
	Requests int
	// GatewayRequests is the per-address budget on webhook intake
	GatewayRequests int
	WindowSeconds   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load reads configuration from the environment, with a .env file in the
// working directory filling in anything the environment leaves unset.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("ADMIN_IDS", "")
	v.SetDefault("BOT_LIVE", true)
	v.SetDefault("BRAND", "")
	v.SetDefault("TAGLINE", "")
	v.SetDefault("MEMORY_LIMIT", 20)
	v.SetDefault("QUEUE_SIZE", 64)
	v.SetDefault("CATALOG_FILE", "catalog.json")
	v.SetDefault("NFT_DIR", "nft_assets")
	v.SetDefault("MILESTONES_FILE", "ai_milestones.jsonl")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("GATEWAY_RATE_LIMIT_REQUESTS", 3000)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:     v.GetString("SERVER_PORT"),
			Env:      v.GetString("SERVER_ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		Bot: BotConfig{
			AdminIDs:    ParseAdminIDs(v.GetString("ADMIN_IDS")),
			Live:        v.GetBool("BOT_LIVE"),
			Brand:       v.GetString("BRAND"),
			Tagline:     v.GetString("TAGLINE"),
			MemoryLimit: v.GetInt("MEMORY_LIMIT"),
			QueueSize:   v.GetInt("QUEUE_SIZE"),
		},
		Storage: StorageConfig{
			CatalogFile:    v.GetString("CATALOG_FILE"),
			NFTDir:         v.GetString("NFT_DIR"),
			MilestonesFile: v.GetString("MILESTONES_FILE"),
			MigrationsDir:  v.GetString("MIGRATIONS_DIR"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests:        v.GetInt("RATE_LIMIT_REQUESTS"),
			GatewayRequests: v.GetInt("GATEWAY_RATE_LIMIT_REQUESTS"),
			WindowSeconds:   v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}
}

// ParseAdminIDs parses a comma separated list of numeric user ids.
// Entries that are not integers are skipped.
func ParseAdminIDs(raw string) []int64 {
	var ids []int64
	for _, part := range splitList(raw) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Warning: ignoring invalid admin id %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsDevelopment reports whether the server runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Server.Env != "production"
}
