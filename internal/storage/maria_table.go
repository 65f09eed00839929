package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MariaConfig содержит настройки подключения к MariaDB/MySQL
type MariaConfig struct {
	Host     string // например, localhost
	Port     int    // например, 3306
	Database string // например, tshock
	Username string // пользователь БД
	Password string // пароль БД
}

// dsn собирает строку подключения.
// ClientFoundRows нужен, чтобы UPDATE с тем же значением ID считался
// затронувшим строку: иначе повторный бан того же ID выглядел бы как сбой записи.
func (c MariaConfig) dsn() string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	cfg.DBName = c.Database
	cfg.ClientFoundRows = true
	cfg.Timeout = 10 * time.Second
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMariaTable подключается к MariaDB/MySQL и проверяет соединение.
//
// Параметры:
//
//	cfg - адрес, база и учетные данные
//
// Возвращает:
//
//	*SQLTable - таблица черного списка (EnsureExists вызывает Store при загрузке)
//	error - ошибка при подключении
func OpenMariaTable(cfg MariaConfig) (*SQLTable, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}

	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return NewSQLTable(db, DialectMySQL), nil
}
