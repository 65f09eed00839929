package blacklist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/bippity/Invincible-Tiles/internal/storage"
)

var (
	// ErrNotFound для пары (категория, зона) нет записи
	ErrNotFound = errors.New("not banned")
	// ErrWriteFailed запись в хранилище не удалась или не затронула строк
	ErrWriteFailed = errors.New("blacklist write failed")
	// ErrAlreadyLoaded Load вызывается один раз, дальше только Reload
	ErrAlreadyLoaded = errors.New("blacklist already loaded")
)

// ChangeOp вид изменения черного списка
type ChangeOp string

const (
	OpAdd    ChangeOp = "add"
	OpRemove ChangeOp = "remove"
)

// Change описывает успешно сохранённое изменение
type Change struct {
	Op       ChangeOp `json:"op"`
	Category Category `json:"category"`
	Zone     string   `json:"zone"`
	ID       int      `json:"id"`
}

// Notifier получает изменения после успешной записи (например, для других узлов).
type Notifier interface {
	BlacklistChanged(ctx context.Context, ch Change) error
}

// Store держит черный список в памяти и зеркалирует изменения в таблицу.
//
// Чтения (IsProtected) идут только из памяти под mu.RLock. Изменения
// сериализуются writeMu: новое множество строится копией, пишется в
// таблицу и только после успешной записи подменяется в памяти, поэтому
// читатель видит либо старое, либо новое множество целиком.
type Store struct {
	table    storage.BlacklistTable
	log      *logging.Logger
	notifier Notifier

	writeMu sync.Mutex
	mu      sync.RWMutex
	entries map[Category]map[string]IDSet
	loaded  bool
}

// Option настройка Store
type Option func(*Store)

// WithNotifier подключает получателя изменений
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithLogger задаёт логгер компонента
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore создаёт пустой Store поверх таблицы. До Load он ничего не защищает.
func NewStore(table storage.BlacklistTable, opts ...Option) *Store {
	s := &Store{
		table:   table,
		log:     logging.Default(),
		entries: emptyEntries(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func emptyEntries() map[Category]map[string]IDSet {
	return map[Category]map[string]IDSet{
		Tile: make(map[string]IDSet),
		Wall: make(map[string]IDSet),
	}
}

// SetNotifier подключает получателя изменений после создания Store
func (s *Store) SetNotifier(n Notifier) {
	s.writeMu.Lock()
	s.notifier = n
	s.writeMu.Unlock()
}

// Load создаёт таблицу при необходимости и читает все строки.
// Вызывается один раз при старте, до обработки событий редактирования.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.loaded {
		return ErrAlreadyLoaded
	}
	if err := s.table.EnsureExists(ctx); err != nil {
		return err
	}
	if err := s.readAll(ctx); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// Reload перечитывает таблицу и атомарно подменяет содержимое.
func (s *Store) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.readAll(ctx)
}

func (s *Store) readAll(ctx context.Context) error {
	rows, err := s.table.ReadAll(ctx)
	if err != nil {
		return err
	}

	entries := emptyEntries()
	for _, row := range rows {
		ids, err := ParseIDList(row.IDs)
		if err != nil {
			return fmt.Errorf("строка %s Type=%d Region=%q: %w", storage.TableName, row.Type, row.Region, err)
		}

		cat := categoryFromType(row.Type)
		if existing, ok := entries[cat][row.Region]; ok {
			s.log.Warn("Дублирующая строка %s для %s/%q, множества объединены", storage.TableName, cat, row.Region)
			for id := range ids {
				existing[id] = struct{}{}
			}
			continue
		}
		entries[cat][row.Region] = ids
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.log.Info("Черный список загружен: тайлы в %d зонах, стены в %d зонах", len(entries[Tile]), len(entries[Wall]))
	return nil
}

func (s *Store) lookup(cat Category, zone string) (IDSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones, ok := s.entries[cat]
	if !ok {
		return nil, false, fmt.Errorf("unknown category %d", int(cat))
	}
	set, exists := zones[zone]
	return set, exists, nil
}

// Add защищает id в зоне. Новая пара (категория, зона) вставляет строку,
// существующая перезаписывает колонку ID.
func (s *Store) Add(ctx context.Context, cat Category, zone string, id int) error {
	s.writeMu.Lock()
	cur, exists, err := s.lookup(cat, zone)
	if err != nil {
		s.writeMu.Unlock()
		return err
	}

	var next IDSet
	if exists {
		next = cur.Clone()
	} else {
		next = make(IDSet, 1)
	}
	next[id] = struct{}{}

	row := storage.Row{IDs: next.String(), Type: int(cat), Region: zone}
	var n int64
	if exists {
		n, err = s.table.Update(ctx, row)
	} else {
		n, err = s.table.Insert(ctx, row)
	}
	if err = checkWrite(n, err); err != nil {
		s.writeMu.Unlock()
		s.log.Error("Запись %s %d в зону %q не удалась: %v", cat, id, zone, err)
		return err
	}

	s.mu.Lock()
	s.entries[cat][zone] = next
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(ctx, Change{Op: OpAdd, Category: cat, Zone: zone, ID: id})
	return nil
}

// Remove снимает защиту id в зоне. Если множество становится пустым,
// строка удаляется вместе с записью в памяти.
func (s *Store) Remove(ctx context.Context, cat Category, zone string, id int) error {
	s.writeMu.Lock()
	cur, exists, err := s.lookup(cat, zone)
	if err != nil {
		s.writeMu.Unlock()
		return err
	}
	if !exists {
		s.writeMu.Unlock()
		return ErrNotFound
	}

	next := cur.Clone()
	delete(next, id)

	var n int64
	if len(next) == 0 {
		n, err = s.table.Delete(ctx, int(cat), zone)
	} else {
		n, err = s.table.Update(ctx, storage.Row{IDs: next.String(), Type: int(cat), Region: zone})
	}
	if err = checkWrite(n, err); err != nil {
		s.writeMu.Unlock()
		s.log.Error("Удаление %s %d из зоны %q не удалось: %v", cat, id, zone, err)
		return err
	}

	s.mu.Lock()
	if len(next) == 0 {
		delete(s.entries[cat], zone)
	} else {
		s.entries[cat][zone] = next
	}
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(ctx, Change{Op: OpRemove, Category: cat, Zone: zone, ID: id})
	return nil
}

func checkWrite(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: no rows affected", ErrWriteFailed)
	}
	return nil
}

func (s *Store) notify(ctx context.Context, ch Change) {
	s.writeMu.Lock()
	n := s.notifier
	s.writeMu.Unlock()
	if n == nil {
		return
	}
	if err := n.BlacklistChanged(ctx, ch); err != nil {
		s.log.Warn("Не удалось разослать изменение черного списка %+v: %v", ch, err)
	}
}

// IsProtected сообщает, защищён ли id хотя бы в одной из зон.
// Пустой список зон означает глобальную зону "".
func (s *Store) IsProtected(cat Category, zones []string, id int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byZone := s.entries[cat]
	if len(byZone) == 0 {
		return false
	}
	if len(zones) == 0 {
		return byZone[""].Contains(id)
	}
	for _, zone := range zones {
		if byZone[zone].Contains(id) {
			return true
		}
	}
	return false
}

// Snapshot возвращает копию категории: зона -> ID по возрастанию.
func (s *Store) Snapshot(cat Category) map[string][]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]int, len(s.entries[cat]))
	for zone, ids := range s.entries[cat] {
		out[zone] = ids.Sorted()
	}
	return out
}

// Zones возвращает зоны категории в алфавитном порядке
func (s *Store) Zones(cat Category) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := make([]string, 0, len(s.entries[cat]))
	for zone := range s.entries[cat] {
		zones = append(zones, zone)
	}
	sort.Strings(zones)
	return zones
}
