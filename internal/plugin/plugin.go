package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/bippity/Invincible-Tiles/internal/commands"
	"github.com/bippity/Invincible-Tiles/internal/config"
	"github.com/bippity/Invincible-Tiles/internal/eventbus"
	"github.com/bippity/Invincible-Tiles/internal/guard"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/bippity/Invincible-Tiles/internal/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrAlreadyStarted повторный Start без Dispose
	ErrAlreadyStarted = errors.New("plugin already started")
)

// Host точки расширения сервера, которые использует расширение.
type Host struct {
	Hooks     *host.Hooks
	Commands  *host.CommandRegistry
	Regions   host.RegionResolver
	World     host.World
	Broadcast host.Broadcaster
}

// TableOpener открывает таблицу черного списка; по умолчанию storage.Open.
type TableOpener func(cfg config.StorageConfig) (storage.BlacklistTable, error)

// Options необязательные зависимости расширения
type Options struct {
	// Bus шина изменений между узлами; nil - без синхронизации
	Bus eventbus.EventBus
	// NodeID идентификатор узла в событиях; пусто - cfg.EventBus.NodeID или uuid
	NodeID string
	// Registerer регистр для метрик Guard; nil - без метрик
	Registerer prometheus.Registerer
	OpenTable  TableOpener
	Logger     *logging.Logger
}

// Plugin жизненный цикл расширения Invincible Tiles.
type Plugin struct {
	cfg  *config.Config
	host Host
	opts Options
	log  *logging.Logger

	mu       sync.Mutex
	table    storage.BlacklistTable
	store    *blacklist.Store
	guard    *guard.Guard
	commands []string // зарегистрированные основные имена
	hookID   host.HookID
	sub      eventbus.Subscription
	started  bool
}

// New создаёт расширение. Ничего не открывает до Start.
func New(cfg *config.Config, h Host, opts Options) *Plugin {
	if opts.OpenTable == nil {
		opts.OpenTable = storage.Open
	}
	if opts.NodeID == "" {
		opts.NodeID = cfg.EventBus.NodeID
	}
	if opts.NodeID == "" {
		opts.NodeID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Plugin{cfg: cfg, host: h, opts: opts, log: opts.Logger}
}

func (p *Plugin) Name() string        { return "Invincible Tiles" }
func (p *Plugin) Version() string     { return "1.0" }
func (p *Plugin) Author() string      { return "Zack" }
func (p *Plugin) Description() string { return "Makes certain tiles indestructible" }

// NodeID идентификатор узла в событиях шины
func (p *Plugin) NodeID() string { return p.opts.NodeID }

// Store возвращает черный список; nil до Start.
func (p *Plugin) Store() *blacklist.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store
}

// Start открывает хранилище, загружает черный список и только после этого
// регистрирует команды и хук редактирования. Любая ошибка откатывает
// уже сделанное и прерывает старт.
func (p *Plugin) Start(ctx context.Context) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	defer func() {
		if err != nil {
			p.teardown()
		}
	}()

	p.table, err = p.opts.OpenTable(p.cfg.Storage)
	if err != nil {
		return fmt.Errorf("открытие хранилища %s: %w", p.cfg.Storage.Type, err)
	}

	storeOpts := []blacklist.Option{blacklist.WithLogger(p.log)}
	if p.opts.Bus != nil {
		storeOpts = append(storeOpts, blacklist.WithNotifier(eventbus.NewChangePublisher(p.opts.Bus, p.opts.NodeID)))
	}
	p.store = blacklist.NewStore(p.table, storeOpts...)
	if err = p.store.Load(ctx); err != nil {
		return fmt.Errorf("загрузка черного списка: %w", err)
	}

	p.guard, err = guard.New(guard.Config{
		Protection: p.store,
		Regions:    p.host.Regions,
		World:      p.host.World,
		Broadcast:  p.host.Broadcast,
		Override:   p.cfg.Permissions.Override,
		Registerer: p.opts.Registerer,
		Logger:     p.log,
	})
	if err != nil {
		return fmt.Errorf("guard: %w", err)
	}

	for _, cmd := range commands.New(p.store, p.host.Regions, p.log).Definitions() {
		if err = p.host.Commands.Register(cmd); err != nil {
			return fmt.Errorf("регистрация команды: %w", err)
		}
		p.commands = append(p.commands, cmd.Names[0])
	}

	if p.opts.Bus != nil {
		p.sub, err = eventbus.SubscribeChanges(context.Background(), p.opts.Bus, p.opts.NodeID, p.onRemoteChange)
		if err != nil {
			return fmt.Errorf("подписка на изменения: %w", err)
		}
	}

	p.hookID = p.host.Hooks.RegisterTileEdit(p.guard.HandleTileEdit)
	p.started = true

	tiles, walls := len(p.store.Zones(blacklist.Tile)), len(p.store.Zones(blacklist.Wall))
	p.log.Info("🛡️ %s %s запущен: хранилище=%s, зон тайлов=%d, зон стен=%d, узел=%s",
		p.Name(), p.Version(), p.cfg.Storage.Type, tiles, walls, p.opts.NodeID)
	return nil
}

// onRemoteChange применяет изменение другого узла перечитыванием таблицы:
// таблица общая, а перечитывание не зависит от порядка доставки событий.
func (p *Plugin) onRemoteChange(ctx context.Context, ch blacklist.Change) {
	p.mu.Lock()
	store := p.store
	p.mu.Unlock()
	if store == nil {
		return
	}

	if err := store.Reload(ctx); err != nil {
		p.log.Error("❌ Не удалось перечитать черный список после %s %s %d (зона %q): %v", ch.Op, ch.Category, ch.ID, ch.Zone, err)
		return
	}
	p.log.Debug("🔄 Черный список перечитан после %s %s %d (зона %q)", ch.Op, ch.Category, ch.ID, ch.Zone)
}

// Dispose снимает хук и команды, отписывается от шины и закрывает хранилище.
// Повторный вызов безопасен.
func (p *Plugin) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	err := p.teardown()
	p.log.Info("%s остановлен", p.Name())
	return err
}

// teardown вызывается под p.mu
func (p *Plugin) teardown() error {
	if p.hookID != 0 {
		p.host.Hooks.UnregisterTileEdit(p.hookID)
		p.hookID = 0
	}
	if len(p.commands) > 0 {
		p.host.Commands.Unregister(p.commands...)
		p.commands = nil
	}
	if p.sub != nil {
		p.sub.Unsubscribe()
		p.sub = nil
	}

	var err error
	if p.table != nil {
		err = p.table.Close()
		p.table = nil
	}
	p.store = nil
	p.guard = nil
	p.started = false
	return err
}
