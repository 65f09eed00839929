package storage

import (
	"context"
	"sort"
	"sync"
)

type rowKey struct {
	typ    int
	region string
}

// MemoryTable реализует BlacklistTable в памяти.
// Используется для локальной разработки и тестов без БД.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryTable struct {
	mu   sync.RWMutex
	rows map[rowKey]string
}

// NewMemoryTable создает пустую таблицу в памяти.
func NewMemoryTable() *MemoryTable {
	return &MemoryTable{
		rows: make(map[rowKey]string),
	}
}

func (t *MemoryTable) EnsureExists(ctx context.Context) error {
	return ctx.Err()
}

// ReadAll возвращает строки, упорядоченные по (Type, Region).
func (t *MemoryTable) ReadAll(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]Row, 0, len(t.rows))
	for k, ids := range t.rows {
		result = append(result, Row{IDs: ids, Type: k.typ, Region: k.region})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		return result[i].Region < result[j].Region
	})
	return result, nil
}

// Insert добавляет строку; существующий ключ не перезаписывается (0 строк).
func (t *MemoryTable) Insert(ctx context.Context, row Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := rowKey{typ: row.Type, region: row.Region}
	if _, exists := t.rows[k]; exists {
		return 0, nil
	}
	t.rows[k] = row.IDs
	return 1, nil
}

func (t *MemoryTable) Update(ctx context.Context, row Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := rowKey{typ: row.Type, region: row.Region}
	if _, exists := t.rows[k]; !exists {
		return 0, nil
	}
	t.rows[k] = row.IDs
	return 1, nil
}

func (t *MemoryTable) Delete(ctx context.Context, typ int, region string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	k := rowKey{typ: typ, region: region}
	if _, exists := t.rows[k]; !exists {
		return 0, nil
	}
	delete(t.rows, k)
	return 1, nil
}

func (t *MemoryTable) Close() error {
	return nil
}
