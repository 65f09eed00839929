package storage

import (
	"fmt"
	"strings"

	"github.com/bippity/Invincible-Tiles/internal/config"
)

// Open создаёт таблицу черного списка по конфигурации.
// Неизвестный тип хранилища или недоступный бэкенд - фатальная ошибка старта.
func Open(cfg config.StorageConfig) (BlacklistTable, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case config.StorageSQLite:
		return OpenSQLiteTable(cfg.SQLitePath)
	case config.StorageMySQL:
		host, port, err := cfg.MySQLAddr()
		if err != nil {
			return nil, err
		}
		return OpenMariaTable(MariaConfig{
			Host:     host,
			Port:     port,
			Database: cfg.MySQLDB,
			Username: cfg.MySQLUser,
			Password: cfg.MySQLPassword,
		})
	case config.StorageMongo:
		return OpenMongoTable(MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	case config.StorageBadger:
		return OpenBadgerTable(cfg.BadgerPath)
	case config.StorageRedis:
		return OpenRedisTable(RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	case config.StorageMemory:
		return NewMemoryTable(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageType, cfg.Type)
	}
}
