package config

import (
	"errors"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Crypto   CryptoConfig   `mapstructure:"crypto"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type AppConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	LogLevel        string        `mapstructure:"log_level"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	EnableCORS      bool          `mapstructure:"enable_cors"`
}

type DatabaseConfig struct {
	Type     string         `mapstructure:"type"` // postgres or sqlite
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Address    string        `mapstructure:"address"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

type StorageConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	ChunkBucket string `mapstructure:"chunk_bucket"`
	FileBucket  string `mapstructure:"file_bucket"`
}

type CryptoConfig struct {
	// AccessCodeSalt is required: every stored access-code hash depends on
	// it, and the server refuses to start without one.
	AccessCodeSalt string `mapstructure:"access_code_salt"`
}

type UploadConfig struct {
	MaxChunkSize int64 `mapstructure:"max_chunk_size"`
}

type AdminConfig struct {
	// PasswordHash is a bcrypt hash of the admin password.
	PasswordHash string `mapstructure:"password_hash"`
	JWTSecret    string `mapstructure:"jwt_secret"`
}

// ErrAccessCodeSaltRequired guards the one setting that must never default.
var ErrAccessCodeSaltRequired = errors.New("crypto.access_code_salt is required")

// Load reads configuration from config.yaml (if present), a .env file and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// .env is optional; missing is fine
	_ = godotenv.Load()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("app.base_url", "http://localhost:8080")
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.cleanup_interval", 5*time.Minute)
	viper.SetDefault("app.enable_cors", true)
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.sqlite.path", "./data/clipshare.db")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.ssl_mode", "disable")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.session_ttl", 24*time.Hour)
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.use_ssl", false)
	viper.SetDefault("storage.chunk_bucket", "clipshare-chunks")
	viper.SetDefault("storage.file_bucket", "clipshare-files")
	viper.SetDefault("upload.max_chunk_size", int64(10<<20))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/clipshare-gateway")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	viper.AutomaticEnv()
	setEnvOverrides()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Crypto.AccessCodeSalt == "" {
		return nil, ErrAccessCodeSaltRequired
	}

	return &cfg, nil
}

func setEnvOverrides() {
	overrides := map[string]string{
		"server.host":                "SERVER_HOST",
		"server.port":                "SERVER_PORT",
		"server.mode":                "SERVER_MODE",
		"app.base_url":               "BASE_URL",
		"app.log_level":              "LOG_LEVEL",
		"database.type":              "DATABASE_TYPE",
		"database.sqlite.path":       "SQLITE_PATH",
		"database.postgres.host":     "POSTGRES_HOST",
		"database.postgres.username": "POSTGRES_USERNAME",
		"database.postgres.password": "POSTGRES_PASSWORD",
		"database.postgres.database": "POSTGRES_DATABASE",
		"redis.address":              "REDIS_ADDRESS",
		"redis.password":             "REDIS_PASSWORD",
		"storage.endpoint":           "MINIO_ENDPOINT",
		"storage.access_key":         "MINIO_ACCESS_KEY",
		"storage.secret_key":         "MINIO_SECRET_KEY",
		"crypto.access_code_salt":    "ACCESS_CODE_SALT",
		"admin.password_hash":        "ADMIN_PASSWORD_HASH",
		"admin.jwt_secret":           "ADMIN_JWT_SECRET",
	}
	for key, env := range overrides {
		if value := viper.GetString(env); value != "" {
			viper.Set(key, value)
		}
	}

	if port := viper.GetString("POSTGRES_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("database.postgres.port", p)
		}
	}
	if db := viper.GetString("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			viper.Set("redis.db", d)
		}
	}
}

// DSN builds the database connection string for the configured backend.
func (c *Config) DSN() string {
	switch c.Database.Type {
	case "postgres":
		p := c.Database.Postgres
		return "host=" + p.Host +
			" port=" + strconv.Itoa(p.Port) +
			" user=" + p.Username +
			" password=" + p.Password +
			" dbname=" + p.Database +
			" sslmode=" + p.SSLMode
	case "sqlite":
		return c.Database.SQLite.Path
	default:
		return ""
	}
}

// DriverName maps the configured backend to its database/sql driver.
func (c *Config) DriverName() string {
	switch c.Database.Type {
	case "postgres":
		return "postgres"
	case "sqlite":
		return "sqlite3"
	default:
		return ""
	}
}
