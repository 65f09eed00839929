package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig ошибка конфигурации; старт расширения прерывается
var ErrInvalidConfig = errors.New("invalid configuration")

// Типы хранилища черного списка
const (
	StorageSQLite = "sqlite"
	StorageMySQL  = "mysql"
	StorageMongo  = "mongo"
	StorageBadger = "badger"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

// Config корневая структура конфигурации.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Permissions PermissionsConfig `yaml:"permissions"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
	Regions     []RegionConfig    `yaml:"regions"`
}

// StorageConfig выбирает бэкенд таблицы BlacklistedTiles.
type StorageConfig struct {
	Type          string `yaml:"type"`
	SQLitePath    string `yaml:"sqlite_path"`
	MySQLHost     string `yaml:"mysql_host"` // host[:port]
	MySQLDB       string `yaml:"mysql_db"`
	MySQLUser     string `yaml:"mysql_user"`
	MySQLPassword string `yaml:"mysql_password"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	BadgerPath    string `yaml:"badger_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type PermissionsConfig struct {
	Override string `yaml:"override"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	NodeID    string `yaml:"node_id"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

type AuthConfig struct {
	JWTSecret     string       `yaml:"jwt_secret"` // base64, >= 32 байт; пусто = случайный на процесс
	TokenTTLHours int          `yaml:"token_ttl_hours"`
	Users         []UserConfig `yaml:"users"`
}

// UserConfig учётная запись REST-администратора. Пароль хранится bcrypt-хешем.
type UserConfig struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Permissions  []string `yaml:"permissions"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// RegionConfig прямоугольный регион встроенного хоста (в тайлах).
type RegionConfig struct {
	Name   string `yaml:"name"`
	X      int    `yaml:"x"`
	Y      int    `yaml:"y"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Default возвращает конфигурацию по умолчанию: sqlite в каталоге data.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Type:       StorageSQLite,
			SQLitePath: "data/invincible_tiles.sqlite",
			MySQLHost:  "localhost:3306",
			BadgerPath: "data/invincible_tiles",
			MongoURI:   "mongodb://localhost:27017",
			RedisAddr:  "localhost:6379",
		},
		Permissions: PermissionsConfig{Override: "breakinvincible"},
		EventBus:    EventBusConfig{Stream: "INVINCIBLE", Retention: 24},
		Auth:        AuthConfig{TokenTTLHours: 24},
		Telemetry:   TelemetryConfig{ServiceName: "invincible-tiles"},
		Logging:     LoggingConfig{Level: "info", Dir: "logs"},
	}
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV INVINCIBLE_CONFIG, иначе отдаёт дефолты.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("INVINCIBLE_CONFIG")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv переопределяет секреты и тип хранилища из окружения
func (c *Config) applyEnv() {
	if v := os.Getenv("INVINCIBLE_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("INVINCIBLE_MYSQL_PASSWORD"); v != "" {
		c.Storage.MySQLPassword = v
	}
	if v := os.Getenv("INVINCIBLE_REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}
	if v := os.Getenv("INVINCIBLE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// Validate проверяет конфигурацию. Ошибки оборачивают ErrInvalidConfig.
func (c *Config) Validate() error {
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	switch c.Storage.Type {
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is empty", ErrInvalidConfig)
		}
	case StorageMySQL:
		if _, _, err := c.Storage.MySQLAddr(); err != nil {
			return err
		}
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("%w: mongo_uri is empty", ErrInvalidConfig)
		}
	case StorageBadger:
		if c.Storage.BadgerPath == "" {
			return fmt.Errorf("%w: badger_path is empty", ErrInvalidConfig)
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is empty", ErrInvalidConfig)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("%w: invalid storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	for i, r := range c.Regions {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: region #%d has no name", ErrInvalidConfig, i)
		}
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("%w: region %q has empty area", ErrInvalidConfig, r.Name)
		}
	}
	return nil
}

// MySQLAddr разбирает mysql_host вида host[:port]; порт по умолчанию 3306.
func (s StorageConfig) MySQLAddr() (string, int, error) {
	host := strings.TrimSpace(s.MySQLHost)
	if host == "" {
		return "", 0, fmt.Errorf("%w: mysql_host is empty", ErrInvalidConfig)
	}
	if !strings.Contains(host, ":") {
		return host, 3306, nil
	}

	h, p, err := net.SplitHostPort(host)
	if err != nil {
		return "", 0, fmt.Errorf("%w: mysql_host %q: %v", ErrInvalidConfig, host, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: mysql_host %q: bad port", ErrInvalidConfig, host)
	}
	return h, port, nil
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "INVINCIBLE_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}
