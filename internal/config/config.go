package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	BucketDocuments string
	UseSSL          bool
	Region          string
}

type SecurityConfig struct {
	JWTSecret    string
	JWTAccessTTL time.Duration
	RefreshTTL   time.Duration
	TrialPeriod  time.Duration
}

// AuthConfig selects how bearer tokens are verified. In "local" mode the
// service signs and checks its own JWTs and manages refresh sessions; in
// "oidc" mode verification is delegated to an external identity provider
// and the password/refresh routes are not mounted.
type AuthConfig struct {
	Mode        string
	Issuer      string
	Audience    string
	JWKSURL     string
	UserinfoURL string
}

type AIConfig struct {
	AccountID string
	APIToken  string
	BaseURL   string
	Timeout   time.Duration
}

type ConvertConfig struct {
	MaxFileSize  int64
	MaxBatchSize int64
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Auth             AuthConfig
	AI               AIConfig
	Convert          ConvertConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CONVFLOW")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Auth.Mode == "local" && cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("security.jwtsecret is required in local auth mode")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketdocuments", "convflow-documents")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtaccessttl", "1h")
	v.SetDefault("security.refreshttl", "720h")  // 30 days
	v.SetDefault("security.trialperiod", "168h") // 7 days

	v.SetDefault("auth.mode", "local")

	v.SetDefault("ai.baseurl", "https://api.cloudflare.com/client/v4/accounts")
	v.SetDefault("ai.timeout", "60s")

	v.SetDefault("convert.maxfilesize", 5*1024*1024)
	v.SetDefault("convert.maxbatchsize", 20*1024*1024)
}
