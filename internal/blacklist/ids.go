package blacklist

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidID нечисловой токен в списке ID или аргументе команды
var ErrInvalidID = errors.New("invalid id")

// Category домен черного списка: тайлы или стены.
// Значение совпадает с колонкой Type таблицы.
type Category int

const (
	Tile Category = 0
	Wall Category = 1
)

// Categories все категории в порядке колонки Type
var Categories = []Category{Tile, Wall}

func (c Category) String() string {
	switch c {
	case Tile:
		return "tile"
	case Wall:
		return "wall"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory разбирает "tile"/"wall" (без учета регистра)
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tile", "tiles":
		return Tile, nil
	case "wall", "walls":
		return Wall, nil
	default:
		return 0, fmt.Errorf("unknown category %q", s)
	}
}

// categoryFromType сохраняет поведение старых установок: всё, что не 0, - стена
func categoryFromType(typ int) Category {
	if typ == int(Tile) {
		return Tile
	}
	return Wall
}

// IDSet множество защищённых ID
type IDSet map[int]struct{}

// NewIDSet создаёт множество из перечисленных ID
func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

// Clone возвращает независимую копию
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s)+1)
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Sorted возвращает ID по возрастанию
func (s IDSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// String кодирует множество для колонки ID: "3,7,42"
func (s IDSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// ParseIDList декодирует колонку ID. Пустая строка - пустое множество.
func ParseIDList(s string) (IDSet, error) {
	set := make(IDSet)
	if strings.TrimSpace(s) == "" {
		return set, nil
	}

	for _, token := range strings.Split(s, ",") {
		id, err := ParseID(token)
		if err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, nil
}

// ParseID разбирает один десятичный ID
func ParseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}
