package host

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RegionResolver сопоставляет координаты мира с именованными регионами.
type RegionResolver interface {
	// RegionsAt все регионы, содержащие (x, y); может быть пусто
	RegionsAt(x, y int) []string
	// RegionByName ищет регион без учёта регистра и возвращает каноничное имя
	RegionByName(name string) (string, bool)
}

// Area прямоугольник в координатах тайлов
type Area struct {
	X, Y, Width, Height int
}

// Contains попадает ли (x, y) в область
func (a Area) Contains(x, y int) bool {
	return x >= a.X && x < a.X+a.Width && y >= a.Y && y < a.Y+a.Height
}

// Region именованная область. Регионы могут пересекаться, Z влияет только на порядок вывода.
type Region struct {
	Name string
	Area Area
	Z    int
}

// RegionManager RegionResolver в памяти.
type RegionManager struct {
	mu      sync.RWMutex
	regions map[string]Region // ключ = lowercase(name)
}

func NewRegionManager() *RegionManager {
	return &RegionManager{regions: make(map[string]Region)}
}

// Add добавляет регион. Имена уникальны без учёта регистра.
func (rm *RegionManager) Add(r Region) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("region name is empty")
	}
	if r.Area.Width <= 0 || r.Area.Height <= 0 {
		return fmt.Errorf("region %q has empty area", name)
	}
	r.Name = name

	rm.mu.Lock()
	defer rm.mu.Unlock()
	key := strings.ToLower(name)
	if _, exists := rm.regions[key]; exists {
		return fmt.Errorf("region %q already exists", name)
	}
	rm.regions[key] = r
	return nil
}

// Remove удаляет регион по имени
func (rm *RegionManager) Remove(name string) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(name))
	if _, ok := rm.regions[key]; !ok {
		return false
	}
	delete(rm.regions, key)
	return true
}

// RegionsAt имена всех регионов, содержащих (x, y), старший Z первым.
func (rm *RegionManager) RegionsAt(x, y int) []string {
	rm.mu.RLock()
	var hits []Region
	for _, r := range rm.regions {
		if r.Area.Contains(x, y) {
			hits = append(hits, r)
		}
	}
	rm.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Z != hits[j].Z {
			return hits[i].Z > hits[j].Z
		}
		return hits[i].Name < hits[j].Name
	})
	names := make([]string, len(hits))
	for i, r := range hits {
		names[i] = r.Name
	}
	return names
}

func (rm *RegionManager) RegionByName(name string) (string, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	r, ok := rm.regions[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return r.Name, true
}
