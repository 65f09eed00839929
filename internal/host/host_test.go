package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionManager(t *testing.T) {
	rm := NewRegionManager()
	require.NoError(t, rm.Add(Region{Name: "Arena", Area: Area{X: 0, Y: 0, Width: 10, Height: 10}}))
	require.NoError(t, rm.Add(Region{Name: "Pit", Area: Area{X: 5, Y: 5, Width: 10, Height: 10}, Z: 1}))
	assert.Error(t, rm.Add(Region{Name: "arena", Area: Area{Width: 1, Height: 1}}), "имена уникальны без учета регистра")
	assert.Error(t, rm.Add(Region{Name: "Flat", Area: Area{Width: 0, Height: 1}}))

	assert.Equal(t, []string{"Arena"}, rm.RegionsAt(1, 1))
	assert.Equal(t, []string{"Pit", "Arena"}, rm.RegionsAt(6, 6), "пересечение возвращает все регионы")
	assert.Empty(t, rm.RegionsAt(10, 0), "правая граница не входит")
	assert.Empty(t, rm.RegionsAt(-1, -1))

	name, ok := rm.RegionByName("ARENA")
	assert.True(t, ok)
	assert.Equal(t, "Arena", name)

	assert.True(t, rm.Remove("pit"))
	assert.False(t, rm.Remove("pit"))
	_, ok = rm.RegionByName("Pit")
	assert.False(t, ok)
}

func TestHooks_RegisterDispatchUnregister(t *testing.T) {
	hooks := NewHooks()
	var order []string

	first := hooks.RegisterTileEdit(func(ev *TileEditEvent) { order = append(order, "first") })
	hooks.RegisterTileEdit(func(ev *TileEditEvent) {
		order = append(order, "second")
		ev.Handled = true
	})
	assert.Equal(t, 2, hooks.TileEditHandlers())

	handled := hooks.DispatchTileEdit(&TileEditEvent{Action: KillTile})
	assert.True(t, handled)
	assert.Equal(t, []string{"first", "second"}, order)

	hooks.UnregisterTileEdit(first)
	hooks.UnregisterTileEdit(first)
	assert.Equal(t, 1, hooks.TileEditHandlers())
}

func TestCommandRegistry(t *testing.T) {
	reg := NewCommandRegistry()
	var got []string
	require.NoError(t, reg.Register(Command{
		Names:      []string{"blacktile", "bt"},
		Permission: "blackTile",
		Handler:    func(args CommandArgs) { got = args.Parameters },
	}))
	assert.Error(t, reg.Register(Command{Names: []string{"bt"}, Handler: func(CommandArgs) {}}))

	admin := NewActor("admin", NewGroup("admin", "blacktile"))
	require.NoError(t, reg.Execute(context.Background(), admin, `/bt 5 "Arena North"`))
	assert.Equal(t, []string{"5", "Arena North"}, got)

	guest := NewActor("guest", NewGroup("guest"))
	assert.ErrorIs(t, reg.Execute(context.Background(), guest, "/blacktile 5"), ErrPermissionDenied)
	assert.Equal(t, MessageError, guest.Messages()[0].Kind)

	assert.ErrorIs(t, reg.Execute(context.Background(), admin, "/nope"), ErrUnknownCommand)

	assert.Equal(t, []string{"blacktile"}, reg.Names())
	reg.Unregister("bt")
	assert.Empty(t, reg.Names())
}

func TestParseParameters(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, ParseParameters(`a  "b c" d`))
	assert.Equal(t, []string{""}, ParseParameters(`""`))
	assert.Empty(t, ParseParameters("   "))
}

func TestGroup_Wildcard(t *testing.T) {
	assert.True(t, NewGroup("superadmin", "*").HasPermission("breakinvincible"))
	var nilGroup *Group
	assert.False(t, nilGroup.HasPermission("x"))
}

func TestGrid_ApplyEdit(t *testing.T) {
	g := NewGrid()
	g.SetCell(1, 2, Cell{Tile: 10, Wall: 4})

	g.ApplyEdit(&TileEditEvent{X: 1, Y: 2, Action: KillTile})
	assert.Equal(t, Cell{Tile: 0, Wall: 4}, g.Cell(1, 2))

	g.ApplyEdit(&TileEditEvent{X: 1, Y: 2, Action: KillWall})
	assert.Equal(t, Cell{}, g.Cell(1, 2))

	g.ApplyEdit(&TileEditEvent{X: 3, Y: 3, Action: PlaceTile, EditData: 7})
	assert.Equal(t, 7, g.TileType(3, 3))

	g.ApplyEdit(&TileEditEvent{X: 3, Y: 3, Action: PoundTile})
	assert.Equal(t, 7, g.TileType(3, 3), "pound не меняет тип")
}

func TestEditAction_String(t *testing.T) {
	assert.Equal(t, "KillWall", KillWall.String())
	assert.Equal(t, "SlopeTile", SlopeTile.String())
	assert.Equal(t, "Unknown", EditAction(99).String())
}
