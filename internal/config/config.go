// internal/config/config.go
package config

import (
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/andresuchdata/bucketsync/internal/storage"
)

type Config struct {
	Store    StoreConfig
	Transfer TransferConfig
	Server   ServerConfig
	Log      LogConfig
}

// StoreConfig holds the object store connection settings.
type StoreConfig struct {
	Endpoint         string
	AccessKey        string
	SecretKey        string
	Region           string
	Bucket           string
	Profile          string
	Backend          string
	SignatureVersion string
	UsePathStyle     bool
	PageSize         int
}

// Credentials returns the connection info for the configured bucket.
func (s StoreConfig) Credentials() storage.Credentials {
	return storage.Credentials{
		Endpoint:   s.Endpoint,
		AccessKey:  s.AccessKey,
		SecretKey:  s.SecretKey,
		Region:     s.Region,
		BucketName: s.Bucket,
	}
}

// ConnectionProfile starts from the named built-in profile and applies the
// backend, signing, addressing and paging overrides.
func (s StoreConfig) ConnectionProfile() (storage.Profile, error) {
	p, err := storage.ProfileByName(s.Profile)
	if err != nil {
		return storage.Profile{}, err
	}
	if s.Backend != "" {
		p.Backend = s.Backend
	}
	if s.SignatureVersion != "" {
		p.SignatureVersion = s.SignatureVersion
	}
	p.UsePathStyle = s.UsePathStyle
	if s.PageSize > 0 {
		p.PageSize = s.PageSize
	}
	return p, nil
}

type TransferConfig struct {
	LocalDir string
}

type ServerConfig struct {
	Port              string
	Mode              string
	ReadTimeout       int
	WriteTimeout      int
	AllowedOrigins    []string
	MaxConcurrentJobs int
}

type LogConfig struct {
	Level  string
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env (if present) and the process environment once and
// returns the shared configuration.
func Load() *Config {
	once.Do(func() {
		_ = godotenv.Load()

		v := viper.New()
		v.AutomaticEnv()
		instance = New(v)
	})

	return instance
}

// New builds a Config from v after applying defaults.
func New(v *viper.Viper) *Config {
	SetDefaults(v)

	return &Config{
		Store: StoreConfig{
			Endpoint:         v.GetString("S3_ENDPOINT"),
			AccessKey:        v.GetString("S3_ACCESS_KEY"),
			SecretKey:        v.GetString("S3_SECRET_KEY"),
			Region:           v.GetString("S3_REGION"),
			Bucket:           v.GetString("S3_BUCKET"),
			Profile:          strings.ToLower(v.GetString("S3_PROFILE")),
			Backend:          strings.ToLower(v.GetString("S3_BACKEND")),
			SignatureVersion: strings.ToLower(v.GetString("S3_SIGNATURE_VERSION")),
			UsePathStyle:     v.GetBool("S3_USE_PATH_STYLE"),
			PageSize:         v.GetInt("S3_PAGE_SIZE"),
		},
		Transfer: TransferConfig{
			LocalDir: v.GetString("APP_LOCAL_DIR"),
		},
		Server: ServerConfig{
			Port:              v.GetString("SERVER_PORT"),
			Mode:              v.GetString("SERVER_MODE"),
			ReadTimeout:       v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:      v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins:    v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			MaxConcurrentJobs: v.GetInt("SERVER_MAX_CONCURRENT_JOBS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

// SetDefaults registers the default value of every known key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_PROFILE", "s3c")
	v.SetDefault("S3_BACKEND", "aws")
	v.SetDefault("S3_SIGNATURE_VERSION", "v4")
	v.SetDefault("S3_USE_PATH_STYLE", true)
	v.SetDefault("S3_PAGE_SIZE", 1000)
	v.SetDefault("APP_LOCAL_DIR", "./data/downloads")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 0)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 0)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_MAX_CONCURRENT_JOBS", 1)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}
