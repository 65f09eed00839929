package host

import (
	"sync"

	"github.com/bippity/Invincible-Tiles/internal/logging"
)

// World читает текущее состояние клеток.
type World interface {
	TileType(x, y int) int
	WallType(x, y int) int
}

// Broadcaster рассылает всем клиентам квадрат клеток с центром в (x, y).
type Broadcaster interface {
	SendTileSquare(x, y, size int)
}

// Cell клетка мира
type Cell struct {
	Tile int `json:"tile"`
	Wall int `json:"wall"`
}

type cellKey struct{ x, y int }

// Grid разреженный мир в памяти. Незаданные клетки пусты (0, 0).
type Grid struct {
	mu    sync.RWMutex
	cells map[cellKey]Cell
}

func NewGrid() *Grid {
	return &Grid{cells: make(map[cellKey]Cell)}
}

func (g *Grid) TileType(x, y int) int { return g.Cell(x, y).Tile }
func (g *Grid) WallType(x, y int) int { return g.Cell(x, y).Wall }

// Cell возвращает клетку (x, y)
func (g *Grid) Cell(x, y int) Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[cellKey{x, y}]
}

// SetCell перезаписывает клетку (x, y)
func (g *Grid) SetCell(x, y int, c Cell) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c == (Cell{}) {
		delete(g.cells, cellKey{x, y})
		return
	}
	g.cells[cellKey{x, y}] = c
}

// ApplyEdit выполняет разрешённое изменение. Меняют сетку только разрушающие действия.
func (g *Grid) ApplyEdit(ev *TileEditEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := cellKey{ev.X, ev.Y}
	c := g.cells[k]
	switch ev.Action {
	case KillTile, KillTileNoItem:
		c.Tile = 0
	case KillWall:
		c.Wall = 0
	case PlaceTile:
		c.Tile = ev.EditData
	case PlaceWall:
		c.Wall = ev.EditData
	default:
		return
	}
	if c == (Cell{}) {
		delete(g.cells, k)
		return
	}
	g.cells[k] = c
}

// LogBroadcaster пишет запросы перерисовки в лог и считает их.
type LogBroadcaster struct {
	mu   sync.Mutex
	sent int
	log  *logging.Logger
}

func NewLogBroadcaster(log *logging.Logger) *LogBroadcaster {
	if log == nil {
		log = logging.Default()
	}
	return &LogBroadcaster{log: log}
}

func (b *LogBroadcaster) SendTileSquare(x, y, size int) {
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
	b.log.Debug("SendTileSquare (%d,%d) size=%d to all", x, y, size)
}

// Sent сколько перерисовок запрошено
func (b *LogBroadcaster) Sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}
