package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

const badgerKeyPrefix = "blacklist:"

// BadgerTable хранит строки черного списка во встроенной BadgerDB.
// Ключ "blacklist:<type>:<region>", значение - колонка ID.
type BadgerTable struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// OpenBadgerTable открывает BadgerDB в каталоге dbPath.
// Пустой dbPath открывает базу в памяти.
func OpenBadgerTable(dbPath string) (*BadgerTable, error) {
	opts := badger.DefaultOptions(dbPath)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerTable{db: db, isReady: true}, nil
}

func badgerKey(typ int, region string) []byte {
	return []byte(badgerKeyPrefix + strconv.Itoa(typ) + ":" + region)
}

// parseBadgerKey разбирает ключ; регион может сам содержать ':'
func parseBadgerKey(key []byte) (int, string, error) {
	rest := strings.TrimPrefix(string(key), badgerKeyPrefix)
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("неверный ключ %q", key)
	}
	typ, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("неверный тип в ключе %q: %w", key, err)
	}
	return typ, parts[1], nil
}

func (t *BadgerTable) ready() error {
	if !t.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

// EnsureExists в BadgerDB схемы нет, проверяем только готовность
func (t *BadgerTable) EnsureExists(ctx context.Context) error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.ready()
}

func (t *BadgerTable) ReadAll(ctx context.Context) ([]Row, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if err := t.ready(); err != nil {
		return nil, err
	}

	var rows []Row
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			typ, region, err := parseBadgerKey(item.Key())
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rows = append(rows, Row{IDs: string(val), Type: typ, Region: region})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return rows, nil
}

// Insert пишет строку, если ключа ещё нет.
func (t *BadgerTable) Insert(ctx context.Context, row Row) (int64, error) {
	return t.write(row.Type, row.Region, func(txn *badger.Txn, key []byte, exists bool) (int64, error) {
		if exists {
			return 0, nil
		}
		return 1, txn.Set(key, []byte(row.IDs))
	})
}

// Update перезаписывает значение существующего ключа.
func (t *BadgerTable) Update(ctx context.Context, row Row) (int64, error) {
	return t.write(row.Type, row.Region, func(txn *badger.Txn, key []byte, exists bool) (int64, error) {
		if !exists {
			return 0, nil
		}
		return 1, txn.Set(key, []byte(row.IDs))
	})
}

func (t *BadgerTable) Delete(ctx context.Context, typ int, region string) (int64, error) {
	return t.write(typ, region, func(txn *badger.Txn, key []byte, exists bool) (int64, error) {
		if !exists {
			return 0, nil
		}
		return 1, txn.Delete(key)
	})
}

func (t *BadgerTable) write(typ int, region string, fn func(txn *badger.Txn, key []byte, exists bool) (int64, error)) (int64, error) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if err := t.ready(); err != nil {
		return 0, err
	}

	key := badgerKey(typ, region)
	var affected int64
	err := t.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		n, err := fn(txn, key, err == nil)
		if err != nil {
			return err
		}
		affected = n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return affected, nil
}

// Close закрывает хранилище данных
func (t *BadgerTable) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if !t.isReady {
		return nil
	}

	t.isReady = false
	return t.db.Close()
}
