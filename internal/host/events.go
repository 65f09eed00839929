package host

import (
	"sync"
)

// EditAction нумерация действий редактирования в протоколе хоста
type EditAction int

const (
	KillTile EditAction = iota
	PlaceTile
	KillWall
	PlaceWall
	KillTileNoItem
	PlaceWire
	KillWire
	PoundTile
	PlaceActuator
	KillActuator
	PlaceWire2
	KillWire2
	PlaceWire3
	KillWire3
	SlopeTile
)

var editActionNames = [...]string{
	"KillTile", "PlaceTile", "KillWall", "PlaceWall", "KillTileNoItem",
	"PlaceWire", "KillWire", "PoundTile", "PlaceActuator", "KillActuator",
	"PlaceWire2", "KillWire2", "PlaceWire3", "KillWire3", "SlopeTile",
}

func (a EditAction) String() string {
	if a >= 0 && int(a) < len(editActionNames) {
		return editActionNames[a]
	}
	return "Unknown"
}

// TileEditEvent приходит на каждую попытку изменить блок.
// Обработчик, выставивший Handled, отменяет изменение.
type TileEditEvent struct {
	Player   Player
	X, Y     int
	Action   EditAction
	EditData int
	Handled  bool
}

// TileEditHandler вызывается синхронно
type TileEditHandler func(ev *TileEditEvent)

// HookID идентификатор зарегистрированного обработчика
type HookID int

type tileEditHook struct {
	id      HookID
	handler TileEditHandler
}

// Hooks таблица обработчиков событий хоста.
type Hooks struct {
	mu       sync.RWMutex
	nextID   HookID
	tileEdit []tileEditHook
}

// NewHooks создаёт пустую таблицу
func NewHooks() *Hooks {
	return &Hooks{nextID: 1}
}

// RegisterTileEdit добавляет обработчик. Обработчики вызываются в порядке регистрации.
func (h *Hooks) RegisterTileEdit(handler TileEditHandler) HookID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.tileEdit = append(h.tileEdit, tileEditHook{id: id, handler: handler})
	return id
}

// UnregisterTileEdit снимает обработчик, неизвестный id игнорируется.
func (h *Hooks) UnregisterTileEdit(id HookID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, hook := range h.tileEdit {
		if hook.id == id {
			h.tileEdit = append(h.tileEdit[:i:i], h.tileEdit[i+1:]...)
			return
		}
	}
}

// TileEditHandlers количество обработчиков
func (h *Hooks) TileEditHandlers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tileEdit)
}

// DispatchTileEdit вызывает все обработчики и сообщает, отменено ли изменение.
func (h *Hooks) DispatchTileEdit(ev *TileEditEvent) bool {
	h.mu.RLock()
	hooks := append([]tileEditHook(nil), h.tileEdit...)
	h.mu.RUnlock()

	for _, hook := range hooks {
		hook.handler(ev)
	}
	return ev.Handled
}
