package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"contesthub/internal/security"
)

const (
	EnvironmentProduction = "production"

	// MinProductionSecretLength is the shortest signing secret accepted in production.
	MinProductionSecretLength = 64

	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

type HTTPConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
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
	Endpoint    string
	AccessKey   string
	SecretKey   string
	BucketAudit string
	UseSSL      bool
	Region      string
}

type SecurityConfig struct {
	JWTSecret            string
	MaxLoginAttempts     int
	AttemptWindowMinutes int
	LockoutMinutes       int
	AdminSessionHours    int
	TeamSessionHours     int
	RateLimitBackend     string
	LoginRatePerSecond   float64
	LoginBurst           int

	// InsecureSecret is set by Validate when a non-production process runs
	// with a generated or short signing secret.
	InsecureSecret bool `mapstructure:"-"`
}

func (s SecurityConfig) AttemptWindow() time.Duration {
	return time.Duration(s.AttemptWindowMinutes) * time.Minute
}

func (s SecurityConfig) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutMinutes) * time.Minute
}

func (s SecurityConfig) AdminSessionTTL() time.Duration {
	return time.Duration(s.AdminSessionHours) * time.Hour
}

func (s SecurityConfig) TeamSessionTTL() time.Duration {
	return time.Duration(s.TeamSessionHours) * time.Hour
}

type ContestConfig struct {
	AutoSubmitDelay  time.Duration
	DispatchSchedule string
	MaintenanceCron  string
	RedispatchAfter  time.Duration
	MaxTaskAttempts  int
	DispatchBatch    int
}

type WorkerConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	TLS              TLSConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Contest          ContestConfig
	Worker           WorkerConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("CONTESTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the security settings and refuses to run production
// without a strong signing secret.
func (c *AppConfig) Validate() error {
	sec := &c.Security

	if c.IsProduction() {
		if len(sec.JWTSecret) < MinProductionSecretLength {
			return fmt.Errorf("config: security.jwtsecret must be at least %d characters in production", MinProductionSecretLength)
		}
	} else if sec.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return fmt.Errorf("config: generate development secret: %w", err)
		}
		sec.JWTSecret = secret
		sec.InsecureSecret = true
	} else if len(sec.JWTSecret) < security.MinSigningKeyLength {
		return fmt.Errorf("config: security.jwtsecret must be at least %d characters (leave it empty to generate one for development)", security.MinSigningKeyLength)
	} else if len(sec.JWTSecret) < MinProductionSecretLength {
		sec.InsecureSecret = true
	}

	if sec.MaxLoginAttempts <= 0 {
		return errors.New("config: security.maxloginattempts must be positive")
	}
	if sec.AttemptWindowMinutes <= 0 || sec.LockoutMinutes <= 0 {
		return errors.New("config: security attempt window and lockout must be positive")
	}
	if sec.AdminSessionHours <= 0 || sec.TeamSessionHours <= 0 {
		return errors.New("config: session ttl hours must be positive")
	}
	if sec.LoginRatePerSecond <= 0 || sec.LoginBurst <= 0 {
		return errors.New("config: security.loginratepersecond and security.loginburst must be positive")
	}
	switch sec.RateLimitBackend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return fmt.Errorf("config: unknown security.ratelimitbackend %q", sec.RateLimitBackend)
	}

	if c.Contest.AutoSubmitDelay < 0 {
		return errors.New("config: contest.autosubmitdelay must not be negative")
	}
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return errors.New("config: tls.certfile and tls.keyfile are required when tls is enabled")
	}

	if c.Contest.MaxTaskAttempts <= 0 {
		return errors.New("config: contest.maxtaskattempts must be positive")
	}
	if c.Contest.DispatchBatch <= 0 {
		return errors.New("config: contest.dispatchbatch must be positive")
	}
	if c.Contest.RedispatchAfter <= 0 {
		return errors.New("config: contest.redispatchafter must be positive")
	}

	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", []string{})

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.bucketaudit", "contesthub-audit")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.maxloginattempts", 5)
	v.SetDefault("security.attemptwindowminutes", 15)
	v.SetDefault("security.lockoutminutes", 15)
	v.SetDefault("security.adminsessionhours", 8)
	v.SetDefault("security.teamsessionhours", 24)
	v.SetDefault("security.ratelimitbackend", RateLimitBackendMemory)
	v.SetDefault("security.loginratepersecond", 2)
	v.SetDefault("security.loginburst", 10)

	v.SetDefault("contest.autosubmitdelay", "10s")
	v.SetDefault("contest.dispatchschedule", "*/5 * * * * *")
	v.SetDefault("contest.maintenancecron", "0 30 0 * * *")
	v.SetDefault("contest.redispatchafter", "2m")
	v.SetDefault("contest.maxtaskattempts", 5)
	v.SetDefault("contest.dispatchbatch", 20)

	v.SetDefault("worker.stream", "contest:tasks")
	v.SetDefault("worker.group", "contest-workers")
	v.SetDefault("worker.consumer", "worker-1")
	v.SetDefault("worker.claiminterval", "30s")

	v.SetDefault("logging.level", "")
	v.SetDefault("allowcorsorigins", []string{})
}
