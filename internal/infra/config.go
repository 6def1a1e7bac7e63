package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации сервиса.
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Workflow       WorkflowConfig       `mapstructure:"workflow"`
	PermissionSync PermissionSyncConfig `mapstructure:"permission_sync"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Audit          AuditConfig          `mapstructure:"audit"`
	Logger         LoggerConfig         `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub, кэш, идемпотентность).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // только для выдачи токенов
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte
}

// WorkflowConfig: параметры автомата заявки.
type WorkflowConfig struct {
	WorkingHours      WorkingHoursConfig `mapstructure:"working_hours"`
	RegulatoryRouting string             `mapstructure:"regulatory_routing"` // foreside, foreside_or_retail
	IdempotencyTTL    time.Duration      `mapstructure:"idempotency_ttl"`
}

// WorkingHoursConfig: рабочее окно по умолчанию, пока в БД нет настроек.
type WorkingHoursConfig struct {
	StartHour   int      `mapstructure:"start_hour"`
	EndHour     int      `mapstructure:"end_hour"`
	WorkingDays []string `mapstructure:"working_days"`
	Timezone    string   `mapstructure:"timezone"`
}

// PermissionSyncConfig: внешний сервис прав и обвязка надежности вызова.
type PermissionSyncConfig struct {
	BaseURL string `mapstructure:"base_url"` // пусто — встроенная заглушка
	Token   string `mapstructure:"token"`

	Attempts       uint          `mapstructure:"attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`

	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// CacheConfig: read-through кэши ролей и рабочих часов.
type CacheConfig struct {
	TTL          time.Duration `mapstructure:"ttl"`
	RedisEnabled bool          `mapstructure:"redis_enabled"`
}

// AuditConfig: буферизация журнала действий.
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// 2. ENV перекрывает файл: DATABASE_URL перекроет database.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Ключи: сначала PEM из ENV (Docker/K8s), затем файл по пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("auth.token_ttl", 8*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("workflow.working_hours.start_hour", 9)
	v.SetDefault("workflow.working_hours.end_hour", 17)
	v.SetDefault("workflow.working_hours.working_days", []string{"mon", "tue", "wed", "thu", "fri"})
	v.SetDefault("workflow.working_hours.timezone", "UTC")
	v.SetDefault("workflow.regulatory_routing", "foreside")
	v.SetDefault("workflow.idempotency_ttl", 24*time.Hour)

	v.SetDefault("permission_sync.attempts", 3)
	v.SetDefault("permission_sync.initial_backoff", 200*time.Millisecond)
	v.SetDefault("permission_sync.max_backoff", 2*time.Second)
	v.SetDefault("permission_sync.attempt_timeout", 5*time.Second)
	v.SetDefault("permission_sync.rate_limit", 50)
	v.SetDefault("permission_sync.rate_burst", 10)
	v.SetDefault("permission_sync.cb_max_requests", 3)
	v.SetDefault("permission_sync.cb_interval", time.Minute)
	v.SetDefault("permission_sync.cb_timeout", 30*time.Second)

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis_enabled", true)

	v.SetDefault("audit.buffer_size", 1000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 1*time.Second)
}

// loadKeyResource: PEM из переменной окружения или из файла.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
