package plugin

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/bippity/Invincible-Tiles/internal/config"
	"github.com/bippity/Invincible-Tiles/internal/eventbus"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/bippity/Invincible-Tiles/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenTable отдаёт ошибку чтения и запоминает закрытие
type brokenTable struct {
	*storage.MemoryTable
	closed bool
}

func (b *brokenTable) ReadAll(ctx context.Context) ([]storage.Row, error) {
	return nil, errors.New("disk on fire")
}

func (b *brokenTable) Close() error {
	b.closed = true
	return nil
}

type testHost struct {
	Host
	grid      *host.Grid
	regions   *host.RegionManager
	broadcast *host.LogBroadcaster
}

func newTestHost(t *testing.T, log *logging.Logger) *testHost {
	t.Helper()
	regions := host.NewRegionManager()
	require.NoError(t, regions.Add(host.Region{Name: "Arena", Area: host.Area{X: 0, Y: 0, Width: 10, Height: 10}}))
	grid := host.NewGrid()
	broadcast := host.NewLogBroadcaster(log)
	return &testHost{
		Host: Host{
			Hooks:     host.NewHooks(),
			Commands:  host.NewCommandRegistry(),
			Regions:   regions,
			World:     grid,
			Broadcast: broadcast,
		},
		grid:      grid,
		regions:   regions,
		broadcast: broadcast,
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Type = config.StorageMemory
	return cfg
}

func sharedTable(table storage.BlacklistTable) TableOpener {
	return func(config.StorageConfig) (storage.BlacklistTable, error) { return table, nil }
}

func quietLogger() *logging.Logger {
	return logging.NewWriterLogger("plugin", io.Discard, logging.ERROR)
}

func TestPlugin_Metadata(t *testing.T) {
	p := New(testConfig(), Host{}, Options{NodeID: "n1"})
	assert.Equal(t, "Invincible Tiles", p.Name())
	assert.Equal(t, "1.0", p.Version())
	assert.Equal(t, "Zack", p.Author())
	assert.NotEmpty(t, p.Description())
	assert.Equal(t, "n1", p.NodeID())

	assert.NotEmpty(t, New(testConfig(), Host{}, Options{}).NodeID(), "uuid по умолчанию")
}

func TestPlugin_Lifecycle(t *testing.T) {
	log := quietLogger()
	h := newTestHost(t, log)
	table := storage.NewMemoryTable()
	_, err := table.Insert(t.Context(), storage.Row{IDs: "30", Type: 0, Region: "Arena"})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	p := New(testConfig(), h.Host, Options{OpenTable: sharedTable(table), Registerer: reg, Logger: log})
	assert.Nil(t, p.Store())

	require.NoError(t, p.Start(t.Context()))
	assert.ErrorIs(t, p.Start(t.Context()), ErrAlreadyStarted)
	assert.Equal(t, 1, h.Hooks.TileEditHandlers())
	assert.Equal(t, []string{"blacklist", "blacktile", "blackwall", "whitetile", "whitewall"}, h.Commands.Names())
	require.NotNil(t, p.Store())
	assert.True(t, p.Store().IsProtected(blacklist.Tile, []string{"Arena"}, 30), "данные загружены до хука")

	// защищённый тайл в Arena не ломается
	h.grid.SetCell(2, 2, host.Cell{Tile: 30})
	player := host.NewActor("bob", host.NewGroup("default"))
	ev := &host.TileEditEvent{Player: player, X: 2, Y: 2, Action: host.KillTile}
	assert.True(t, h.Hooks.DispatchTileEdit(ev))
	assert.Equal(t, 1, h.broadcast.Sent())

	// команда через реестр хоста
	admin := host.NewActor("admin", host.NewGroup("admin", "*"))
	require.NoError(t, h.Commands.Execute(t.Context(), admin, "/bw 4"))
	assert.True(t, p.Store().IsProtected(blacklist.Wall, nil, 4))

	require.NoError(t, p.Dispose())
	require.NoError(t, p.Dispose(), "повторный Dispose безопасен")
	assert.Zero(t, h.Hooks.TileEditHandlers())
	assert.Empty(t, h.Commands.Names())
	assert.Nil(t, p.Store())

	// после Dispose событие проходит
	ev = &host.TileEditEvent{Player: player, X: 2, Y: 2, Action: host.KillTile}
	assert.False(t, h.Hooks.DispatchTileEdit(ev))

	// и можно стартовать снова
	require.NoError(t, p.Start(t.Context()))
	assert.True(t, p.Store().IsProtected(blacklist.Wall, nil, 4), "стена сохранена в таблице")
	require.NoError(t, p.Dispose())
}

func TestPlugin_LoadFailureAborts(t *testing.T) {
	log := quietLogger()
	h := newTestHost(t, log)
	table := &brokenTable{MemoryTable: storage.NewMemoryTable()}

	p := New(testConfig(), h.Host, Options{OpenTable: sharedTable(table), Logger: log})
	err := p.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")

	assert.True(t, table.closed, "таблица закрыта после неудачного старта")
	assert.Zero(t, h.Hooks.TileEditHandlers(), "хук не зарегистрирован")
	assert.Empty(t, h.Commands.Names())
	assert.Nil(t, p.Store())
	assert.NoError(t, p.Dispose())
}

func TestPlugin_OpenFailure(t *testing.T) {
	log := quietLogger()
	h := newTestHost(t, log)
	cfg := testConfig()
	cfg.Storage.Type = "floppy"

	err := New(cfg, h.Host, Options{Logger: log}).Start(t.Context())
	assert.ErrorIs(t, err, storage.ErrUnknownStorageType)
}

func TestPlugin_CommandNameTaken(t *testing.T) {
	log := quietLogger()
	h := newTestHost(t, log)
	foreign := host.Command{Names: []string{"whitewall"}, Handler: func(host.CommandArgs) {}}
	require.NoError(t, h.Commands.Register(foreign))

	p := New(testConfig(), h.Host, Options{Logger: log})
	require.Error(t, p.Start(t.Context()))
	assert.Equal(t, []string{"whitewall"}, h.Commands.Names(), "чужая команда не тронута, свои сняты")
	assert.Zero(t, h.Hooks.TileEditHandlers())
}

func TestPlugin_CrossNodeReload(t *testing.T) {
	log := quietLogger()
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()
	table := storage.NewMemoryTable()

	hostA, hostB := newTestHost(t, log), newTestHost(t, log)
	a := New(testConfig(), hostA.Host, Options{Bus: bus, NodeID: "a", OpenTable: sharedTable(table), Logger: log})
	b := New(testConfig(), hostB.Host, Options{Bus: bus, NodeID: "b", OpenTable: sharedTable(table), Logger: log})
	require.NoError(t, a.Start(t.Context()))
	require.NoError(t, b.Start(t.Context()))
	defer a.Dispose()
	defer b.Dispose()

	require.NoError(t, a.Store().Add(t.Context(), blacklist.Tile, "Arena", 77))
	require.Eventually(t, func() bool {
		return b.Store().IsProtected(blacklist.Tile, []string{"Arena"}, 77)
	}, 2*time.Second, 10*time.Millisecond, "узел b перечитал таблицу")

	require.NoError(t, b.Store().Remove(t.Context(), blacklist.Tile, "Arena", 77))
	require.Eventually(t, func() bool {
		return !a.Store().IsProtected(blacklist.Tile, []string{"Arena"}, 77)
	}, 2*time.Second, 10*time.Millisecond, "узел a увидел удаление")
}
