package guard

import (
	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultOverridePermission право, при котором защита не действует
const DefaultOverridePermission = "breakinvincible"

// Protection отвечает на вопрос, защищён ли ID в одной из зон.
// Реализуется blacklist.Store.
type Protection interface {
	IsProtected(cat blacklist.Category, zones []string, id int) bool
}

// Reason причина решения по событию редактирования
type Reason string

const (
	ReasonOverride    Reason = "override"
	ReasonUnguarded   Reason = "unguarded_action"
	ReasonProtected   Reason = "protected"
	ReasonUnprotected Reason = "unprotected"
)

// Decision результат проверки одного события.
type Decision struct {
	Allowed  bool
	Reason   Reason
	Category blacklist.Category
	TypeID   int
	Zones    []string
}

// Config зависимости Guard
type Config struct {
	Protection Protection
	Regions    host.RegionResolver
	World      host.World
	Broadcast  host.Broadcaster
	// Override право обхода защиты; пусто = DefaultOverridePermission
	Override string
	// Registerer регистр для метрик решений; nil отключает метрики
	Registerer prometheus.Registerer
	Logger     *logging.Logger
}

// Guard отклоняет разрушение защищённых тайлов и стен.
type Guard struct {
	protection Protection
	regions    host.RegionResolver
	world      host.World
	broadcast  host.Broadcaster
	override   string
	log        *logging.Logger
	decisions  *prometheus.CounterVec
}

// New создаёт Guard. Метрики регистрируются сразу, ошибка регистрации возвращается.
func New(cfg Config) (*Guard, error) {
	g := &Guard{
		protection: cfg.Protection,
		regions:    cfg.Regions,
		world:      cfg.World,
		broadcast:  cfg.Broadcast,
		override:   cfg.Override,
		log:        cfg.Logger,
	}
	if g.override == "" {
		g.override = DefaultOverridePermission
	}
	if g.log == nil {
		g.log = logging.Default()
	}

	if cfg.Registerer != nil {
		g.decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invincible_tiles",
			Name:      "edit_decisions_total",
			Help:      "Решения по событиям редактирования тайлов.",
		}, []string{"category", "decision"})
		if err := cfg.Registerer.Register(g.decisions); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			g.decisions = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return g, nil
}

// Classify сопоставляет действие категории черного списка.
// false означает, что действие не проверяется (установка, провода, скосы).
func Classify(action host.EditAction) (blacklist.Category, bool) {
	switch action {
	case host.KillWall:
		return blacklist.Wall, true
	case host.KillTile, host.KillTileNoItem, host.PoundTile:
		return blacklist.Tile, true
	default:
		return 0, false
	}
}

// Decide принимает решение без побочных эффектов.
// При праве обхода ни регионы, ни мир не запрашиваются.
func (g *Guard) Decide(player host.Player, x, y int, action host.EditAction) Decision {
	if player != nil && player.HasPermission(g.override) {
		return Decision{Allowed: true, Reason: ReasonOverride}
	}

	cat, guarded := Classify(action)
	if !guarded {
		return Decision{Allowed: true, Reason: ReasonUnguarded}
	}

	zones := g.regions.RegionsAt(x, y)

	var typeID int
	if cat == blacklist.Wall {
		typeID = g.world.WallType(x, y)
	} else {
		typeID = g.world.TileType(x, y)
	}

	d := Decision{Category: cat, TypeID: typeID, Zones: zones}
	if g.protection.IsProtected(cat, zones, typeID) {
		d.Reason = ReasonProtected
		return d
	}
	d.Allowed = true
	d.Reason = ReasonUnprotected
	return d
}

// HandleTileEdit обработчик хука редактирования тайлов.
// Запрещённое событие помечается обработанным, клиентам отправляется
// перерисовка клетки 1x1, чтобы вернуть блок на место.
func (g *Guard) HandleTileEdit(ev *host.TileEditEvent) {
	if ev == nil || ev.Handled {
		return
	}

	d := g.Decide(ev.Player, ev.X, ev.Y, ev.Action)
	g.observe(d)
	if d.Allowed {
		return
	}

	ev.Handled = true
	g.broadcast.SendTileSquare(ev.X, ev.Y, 1)

	name := ""
	if ev.Player != nil {
		name = ev.Player.Name()
	}
	g.log.Debug("🛡️ %s: %s %d в (%d,%d) защищён, зоны=%v", name, d.Category, d.TypeID, ev.X, ev.Y, d.Zones)
}

func (g *Guard) observe(d Decision) {
	if g.decisions == nil {
		return
	}
	category := "none"
	if d.Reason == ReasonProtected || d.Reason == ReasonUnprotected {
		category = d.Category.String()
	}
	decision := "deny"
	if d.Allowed {
		decision = "allow"
	}
	g.decisions.WithLabelValues(category, decision).Inc()
}
