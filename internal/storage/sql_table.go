package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect диалект SQL бэкенда
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectMySQL
)

// String возвращает имя диалекта для логов
func (d Dialect) String() string {
	switch d {
	case DialectSQLite:
		return "sqlite"
	case DialectMySQL:
		return "mysql"
	default:
		return "unknown"
	}
}

// SQLTable реализует BlacklistTable поверх database/sql.
// Схема совпадает со старыми установками плагина, поэтому уникального
// ключа на (Type, Region) нет: единственность держит Store.
type SQLTable struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLTable оборачивает уже открытое соединение.
func NewSQLTable(db *sql.DB, dialect Dialect) *SQLTable {
	return &SQLTable{db: db, dialect: dialect}
}

// Dialect возвращает диалект таблицы
func (t *SQLTable) Dialect() Dialect {
	return t.dialect
}

func (t *SQLTable) createTableQuery() string {
	if t.dialect == DialectMySQL {
		return `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
			ID     TEXT,
			Type   INT DEFAULT 0,
			Region VARCHAR(255)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	}
	return `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		ID     TEXT,
		Type   INTEGER DEFAULT 0,
		Region TEXT
	)`
}

// EnsureExists создаёт таблицу BlacklistedTiles, если она не существует.
func (t *SQLTable) EnsureExists(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, t.createTableQuery()); err != nil {
		return fmt.Errorf("ошибка создания таблицы %s: %w", TableName, err)
	}
	return nil
}

// keyMatch сравнивает ключ так же, как его видит Store после ReadAll:
// NULL регион это глобальная зона, NULL Type тайл, любой Type кроме 0 стена.
const keyMatch = ` WHERE (CASE WHEN COALESCE(Type, 0) = 0 THEN 0 ELSE 1 END) = ? AND COALESCE(Region, '') = ?`

// ReadAll читает все строки. NULL в старых строках читается как "" и 0.
func (t *SQLTable) ReadAll(ctx context.Context) ([]Row, error) {
	query := `SELECT COALESCE(ID, ''), COALESCE(Type, 0), COALESCE(Region, '') FROM ` + TableName

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", TableName, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.IDs, &r.Type, &r.Region); err != nil {
			return nil, fmt.Errorf("ошибка разбора строки %s: %w", TableName, err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения %s: %w", TableName, err)
	}
	return result, nil
}

// Insert добавляет строку (ID, Type, Region).
func (t *SQLTable) Insert(ctx context.Context, row Row) (int64, error) {
	query := `INSERT INTO ` + TableName + ` (ID, Type, Region) VALUES (?, ?, ?)`
	return t.exec(ctx, query, row.IDs, row.Type, row.Region)
}

// Update перезаписывает ID строки с ключом (Type, Region).
func (t *SQLTable) Update(ctx context.Context, row Row) (int64, error) {
	query := `UPDATE ` + TableName + ` SET ID = ?` + keyMatch
	return t.exec(ctx, query, row.IDs, row.Type, row.Region)
}

// Delete удаляет строку с ключом (Type, Region).
func (t *SQLTable) Delete(ctx context.Context, typ int, region string) (int64, error) {
	query := `DELETE FROM ` + TableName + keyMatch
	return t.exec(ctx, query, typ, region)
}

func (t *SQLTable) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	return affected, nil
}

// Close закрывает соединение с базой данных.
func (t *SQLTable) Close() error {
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}
