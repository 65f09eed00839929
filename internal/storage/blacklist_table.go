package storage

import (
	"context"
	"errors"
)

// TableName имя таблицы черного списка, совместимое со старыми установками.
const TableName = "BlacklistedTiles"

// ErrUnknownStorageType возвращается фабрикой Open для неизвестного типа хранилища.
var ErrUnknownStorageType = errors.New("invalid storage type")

// Row одна строка таблицы BlacklistedTiles.
// IDs хранит десятичные ID через запятую, Type: 0 = тайл, 1 = стена.
type Row struct {
	IDs    string
	Type   int
	Region string
}

// BlacklistTable определяет доступ к таблице BlacklistedTiles.
// Ключ строки - пара (Type, Region). Методы записи возвращают число
// затронутых строк; ноль означает, что запись не состоялась.
type BlacklistTable interface {
	// EnsureExists создаёт таблицу, если её нет. Повторный вызов ничего не меняет.
	EnsureExists(ctx context.Context) error

	// ReadAll возвращает все строки таблицы.
	ReadAll(ctx context.Context) ([]Row, error)

	// Insert добавляет новую строку.
	Insert(ctx context.Context, row Row) (int64, error)

	// Update перезаписывает колонку ID строки с ключом (row.Type, row.Region).
	Update(ctx context.Context, row Row) (int64, error)

	// Delete удаляет строку с ключом (typ, region).
	Delete(ctx context.Context, typ int, region string) (int64, error)

	// Close освобождает соединение.
	Close() error
}
