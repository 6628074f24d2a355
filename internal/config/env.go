package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Env struct {
	AppAddr   string `mapstructure:"app_addr"`
	GinMode   string `mapstructure:"gin_mode"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Timezone  string `mapstructure:"timezone"`

	Database  DatabaseEnv  `mapstructure:"database"`
	JWT       JWTEnv       `mapstructure:"jwt"`
	CORS      CORSEnv      `mapstructure:"cors"`
	SMTP      SMTPEnv      `mapstructure:"smtp"`
	Stripe    StripeEnv    `mapstructure:"stripe"`
	Maps      MapsEnv      `mapstructure:"maps"`
	Gemini    GeminiEnv    `mapstructure:"gemini"`
	NATS      NATSEnv      `mapstructure:"nats"`
	Valkey    ValkeyEnv    `mapstructure:"valkey"`
	Cache     CacheEnv     `mapstructure:"cache"`
	Assistant AssistantEnv `mapstructure:"assistant"`
}

type DatabaseEnv struct {
	// Driver is "mysql" or "memory".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type JWTEnv struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type CORSEnv struct {
	AllowedOrigins string `mapstructure:"allowed_origins"`
}

// Origins splits the comma separated allow list.
func (c CORSEnv) Origins() []string {
	out := []string{}
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type SMTPEnv struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type StripeEnv struct {
	SecretKey  string `mapstructure:"secret_key"`
	Currency   string `mapstructure:"currency"`
	SuccessURL string `mapstructure:"success_url"`
	CancelURL  string `mapstructure:"cancel_url"`
}

type MapsEnv struct {
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeminiEnv struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type NATSEnv struct {
	URL            string        `mapstructure:"url"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type ValkeyEnv struct {
	Addr string `mapstructure:"addr"`
}

type CacheEnv struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type AssistantEnv struct {
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	GazetteerPath string  `mapstructure:"gazetteer_path"`
}

// LoadEnv reads .env (optional), config.yaml (optional) and the process environment.
// Nested keys map to env names with "_" (database.dsn -> DATABASE_DSN).
func LoadEnv() (Env, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Env{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return Env{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Env{}, err
	}
	return env, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_addr", ":8080")
	v.SetDefault("gin_mode", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("timezone", "Asia/Kuala_Lumpur")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "root:@tcp(127.0.0.1:3306)/busease?parseTime=true&loc=Local&charset=utf8mb4&timeout=5s&readTimeout=30s&writeTimeout=30s")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 10*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "BusEase <no-reply@busease.com>")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.currency", "myr")
	v.SetDefault("stripe.success_url", "http://localhost:3000/success")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/cancel")

	v.SetDefault("maps.api_key", "")
	v.SetDefault("maps.timeout", 10*time.Second)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.timeout", 15*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.publish_timeout", 5*time.Second)
	v.SetDefault("valkey.addr", "")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("assistant.rate_per_second", 2.0)
	v.SetDefault("assistant.burst", 5)
	v.SetDefault("assistant.gazetteer_path", "")
}

// Validate checks that required configuration fields are present and sane.
func (e Env) Validate() error {
	var errs []string

	if strings.TrimSpace(e.AppAddr) == "" {
		errs = append(errs, "app_addr is required")
	}
	switch e.Database.Driver {
	case "mysql":
		if strings.TrimSpace(e.Database.DSN) == "" {
			errs = append(errs, "database.dsn is required for the mysql driver")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be mysql or memory, got %q", e.Database.Driver))
	}
	if strings.TrimSpace(e.JWT.Secret) == "" {
		errs = append(errs, "jwt.secret is required")
	}
	if e.JWT.TTL <= 0 {
		errs = append(errs, "jwt.ttl must be positive")
	}
	if _, err := time.LoadLocation(e.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q: %v", e.Timezone, err))
	}
	if e.SMTP.Host != "" && (e.SMTP.Port <= 0 || e.SMTP.Port > 65535) {
		errs = append(errs, fmt.Sprintf("smtp.port must be 1-65535, got %d", e.SMTP.Port))
	}
	if e.Assistant.RatePerSecond <= 0 || e.Assistant.Burst <= 0 {
		errs = append(errs, "assistant.rate_per_second and assistant.burst must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location resolves the configured timezone; Validate guarantees it loads.
func (e Env) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
