package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
)

// Права команд
const (
	PermBlackTile = "blackTile"
	PermWhiteTile = "whiteTile"
	PermBlackWall = "blackWall"
	PermWhiteWall = "whiteWall"
)

// Store часть blacklist.Store, нужная командам
type Store interface {
	Add(ctx context.Context, cat blacklist.Category, zone string, id int) error
	Remove(ctx context.Context, cat blacklist.Category, zone string, id int) error
	Snapshot(cat blacklist.Category) map[string][]int
}

// Handlers реализует административные команды черного списка.
type Handlers struct {
	store   Store
	regions host.RegionResolver
	log     *logging.Logger
}

// New создаёт обработчики команд. log == nil - глобальный логгер.
func New(store Store, regions host.RegionResolver, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Default()
	}
	return &Handlers{store: store, regions: regions, log: log}
}

// Definitions возвращает команды для регистрации в реестре хоста.
func (h *Handlers) Definitions() []host.Command {
	return []host.Command{
		{
			Names:      []string{"blacktile", "bt"},
			Permission: PermBlackTile,
			HelpText:   "Protects a tile id from being broken: /blacktile <id> [region]",
			Handler:    func(args host.CommandArgs) { h.add(args, blacklist.Tile) },
		},
		{
			Names:      []string{"whitetile", "wt"},
			Permission: PermWhiteTile,
			HelpText:   "Removes tile protection: /whitetile <id> [region]",
			Handler:    func(args host.CommandArgs) { h.remove(args, blacklist.Tile) },
		},
		{
			Names:      []string{"blackwall", "bw"},
			Permission: PermBlackWall,
			HelpText:   "Protects a wall id from being broken: /blackwall <id> [region]",
			Handler:    func(args host.CommandArgs) { h.add(args, blacklist.Wall) },
		},
		{
			Names:      []string{"whitewall", "ww"},
			Permission: PermWhiteWall,
			HelpText:   "Removes wall protection: /whitewall <id> [region]",
			Handler:    func(args host.CommandArgs) { h.remove(args, blacklist.Wall) },
		},
		{
			Names:      []string{"blacklist", "bl"},
			Permission: PermBlackTile,
			HelpText:   "Lists protected ids: /blacklist [tile|wall]",
			Handler:    h.list,
		},
	}
}

// Names возвращает основные имена всех команд (для снятия регистрации).
func (h *Handlers) Names() []string {
	defs := h.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Names[0]
	}
	return names
}

func noun(cat blacklist.Category) string {
	if cat == blacklist.Wall {
		return "wall"
	}
	return "tile"
}

// target разбирает "<id> [region]". false - игроку уже отправлена ошибка.
func (h *Handlers) target(args host.CommandArgs, cat blacklist.Category, verb string) (int, string, bool) {
	if len(args.Parameters) < 1 {
		args.Player.SendErrorMessage(fmt.Sprintf("You must specify a %s to %s.", noun(cat), verb))
		return 0, "", false
	}

	raw := args.Parameters[0]
	id, err := blacklist.ParseID(raw)
	if err != nil {
		n := noun(cat)
		args.Player.SendErrorMessage(fmt.Sprintf("%s id '%s' is not a valid number.", strings.ToUpper(n[:1])+n[1:], raw))
		return 0, "", false
	}

	zone := ""
	if len(args.Parameters) > 1 {
		name, ok := h.regions.RegionByName(args.Parameters[1])
		if !ok {
			args.Player.SendErrorMessage(fmt.Sprintf("Region '%s' does not exist.", args.Parameters[1]))
			return 0, "", false
		}
		zone = name
	}
	return id, zone, true
}

func commandContext(args host.CommandArgs) context.Context {
	if args.Ctx != nil {
		return args.Ctx
	}
	return context.Background()
}

func (h *Handlers) add(args host.CommandArgs, cat blacklist.Category) {
	id, zone, ok := h.target(args, cat, "add")
	if !ok {
		return
	}

	if err := h.store.Add(commandContext(args), cat, zone, id); err != nil {
		h.log.Error("❌ %s: не удалось добавить %s %d в зону %q: %v", args.Player.Name(), cat, id, zone, err)
		args.Player.SendErrorMessage("Inserting into the database has failed!")
		return
	}
	h.log.Info("%s добавил %s %d в зону %q", args.Player.Name(), cat, id, zone)
	args.Player.SendSuccessMessage(fmt.Sprintf("Successfully banned %d", id))
}

func (h *Handlers) remove(args host.CommandArgs, cat blacklist.Category) {
	id, zone, ok := h.target(args, cat, "remove")
	if !ok {
		return
	}

	err := h.store.Remove(commandContext(args), cat, zone, id)
	switch {
	case err == nil:
		h.log.Info("%s убрал %s %d из зоны %q", args.Player.Name(), cat, id, zone)
		args.Player.SendSuccessMessage(fmt.Sprintf("Successfully unbanned %d", id))
	case errors.Is(err, blacklist.ErrNotFound):
		args.Player.SendErrorMessage(fmt.Sprintf("%d is not banned!", id))
	default:
		h.log.Error("❌ %s: не удалось убрать %s %d из зоны %q: %v", args.Player.Name(), cat, id, zone, err)
		args.Player.SendErrorMessage(fmt.Sprintf("Removing from the database has failed! Are you sure %d is banned?", id))
	}
}

func (h *Handlers) list(args host.CommandArgs) {
	cats := blacklist.Categories
	if len(args.Parameters) > 0 {
		cat, err := blacklist.ParseCategory(args.Parameters[0])
		if err != nil {
			args.Player.SendErrorMessage("Usage: /blacklist [tile|wall]")
			return
		}
		cats = []blacklist.Category{cat}
	}

	for _, cat := range cats {
		snapshot := h.store.Snapshot(cat)
		if len(snapshot) == 0 {
			args.Player.SendInfoMessage(fmt.Sprintf("No %ss are protected.", noun(cat)))
			continue
		}

		zones := make([]string, 0, len(snapshot))
		for zone := range snapshot {
			zones = append(zones, zone)
		}
		sort.Strings(zones)

		args.Player.SendInfoMessage(fmt.Sprintf("Protected %ss:", noun(cat)))
		for _, zone := range zones {
			label := zone
			if label == "" {
				label = "(global)"
			}
			args.Player.SendInfoMessage(fmt.Sprintf("  %s: %s", label, joinIDs(snapshot[zone])))
		}
	}
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	return blacklist.NewIDSet(ids...).String()
}
