package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/auth"
	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/bippity/Invincible-Tiles/internal/commands"
	"github.com/bippity/Invincible-Tiles/internal/guard"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/bippity/Invincible-Tiles/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server *RestServer
	issuer *auth.Issuer
	store  *blacklist.Store
	grid   *host.Grid
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.NewWriterLogger("api", io.Discard, logging.ERROR)

	store := blacklist.NewStore(storage.NewMemoryTable(), blacklist.WithLogger(log))
	require.NoError(t, store.Load(context.Background()))

	regions := host.NewRegionManager()
	require.NoError(t, regions.Add(host.Region{Name: "Arena", Area: host.Area{X: 0, Y: 0, Width: 10, Height: 10}}))
	grid := host.NewGrid()

	registry := host.NewCommandRegistry()
	for _, cmd := range commands.New(store, regions, log).Definitions() {
		require.NoError(t, registry.Register(cmd))
	}

	g, err := guard.New(guard.Config{
		Protection: store,
		Regions:    regions,
		World:      grid,
		Broadcast:  host.NewLogBroadcaster(log),
		Logger:     log,
	})
	require.NoError(t, err)
	hooks := host.NewHooks()
	hooks.RegisterTileEdit(g.HandleTileEdit)

	hash, err := auth.HashPassword("secret1")
	require.NoError(t, err)
	users := auth.NewMemoryUserRepo()
	_, err = users.CreateUser("root", hash, []string{"*"})
	require.NoError(t, err)

	issuer, err := auth.NewIssuer("", time.Hour)
	require.NoError(t, err)

	rs, err := NewRestServer(Config{
		UserRepo: users,
		Issuer:   issuer,
		Commands: registry,
		Hooks:    hooks,
		Grid:     grid,
		Store:    store,
		Logger:   log,
	})
	require.NoError(t, err)

	return &testEnv{server: rs, issuer: issuer, store: store, grid: grid}
}

func (e *testEnv) token(t *testing.T, perms ...string) string {
	t.Helper()
	token, err := e.issuer.GenerateJWT("tester", perms)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

type commandResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Messages []host.Message `json:"messages"`
	} `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rest_api_http_request_duration_seconds")
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/blacklist/tile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/blacklist/tile", "garbage", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/blacklist/tile", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "только Bearer")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "root", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "root", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp LoginResponse
	decode(t, w, &resp)
	assert.True(t, resp.Success)

	claims, err := env.issuer.ValidateJWT(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "root", claims.Username)
	assert.Equal(t, []string{"*"}, claims.Permissions)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{}).Code)
}

func TestCommandsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, commands.PermBlackTile)

	w := env.do(t, http.MethodPost, "/api/commands", token, CommandRequest{Command: "blacktile", Args: []string{"5", "arena"}})
	require.Equal(t, http.StatusOK, w.Code)
	var resp commandResponse
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, []host.Message{{Kind: host.MessageSuccess, Text: "Successfully banned 5"}}, resp.Data.Messages)
	assert.True(t, env.store.IsProtected(blacklist.Tile, []string{"Arena"}, 5))

	w = env.do(t, http.MethodPost, "/api/commands", token, CommandRequest{Command: "bt", Args: []string{"abc"}})
	require.Equal(t, http.StatusOK, w.Code)
	resp = commandResponse{}
	decode(t, w, &resp)
	assert.False(t, resp.Success, "ошибка валидации")
	assert.Equal(t, "Tile id 'abc' is not a valid number.", resp.Data.Messages[0].Text)

	w = env.do(t, http.MethodPost, "/api/commands", token, CommandRequest{Command: "blackwall", Args: []string{"1"}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/commands", token, CommandRequest{Command: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBlacklistEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Add(context.Background(), blacklist.Wall, "", 4))
	require.NoError(t, env.store.Add(context.Background(), blacklist.Wall, "", 2))
	token := env.token(t)

	w := env.do(t, http.MethodGet, "/api/blacklist/wall", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data map[string][]int `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, map[string][]int{"": {2, 4}}, resp.Data)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/blacklist/floor", token, nil).Code)
}

func TestEditEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Add(context.Background(), blacklist.Tile, "Arena", 30))
	env.grid.SetCell(1, 1, host.Cell{Tile: 30})
	env.grid.SetCell(50, 50, host.Cell{Tile: 30})

	type editResponse struct {
		Handled bool      `json:"handled"`
		Cell    host.Cell `json:"cell"`
	}

	var resp editResponse
	decode(t, env.do(t, http.MethodPost, "/api/edit", env.token(t), EditRequest{X: 1, Y: 1, Action: host.KillTile}), &resp)
	assert.True(t, resp.Handled, "тайл защищён в Arena")
	assert.Equal(t, 30, resp.Cell.Tile)

	resp = editResponse{}
	decode(t, env.do(t, http.MethodPost, "/api/edit", env.token(t), EditRequest{X: 50, Y: 50, Action: host.KillTile}), &resp)
	assert.False(t, resp.Handled, "вне Arena ломается")
	assert.Equal(t, 0, resp.Cell.Tile)

	resp = editResponse{}
	decode(t, env.do(t, http.MethodPost, "/api/edit", env.token(t, "breakinvincible"), EditRequest{X: 1, Y: 1, Action: host.KillTile}), &resp)
	assert.False(t, resp.Handled, "право обхода")
	assert.Equal(t, 0, env.grid.TileType(1, 1))
}

func TestWorldCellRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	body := CellRequest{X: 3, Y: 4, Tile: 7, Wall: 2}

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, "/api/world/cell", env.token(t, "blackTile"), body).Code)

	w := env.do(t, http.MethodPut, "/api/world/cell", env.token(t, PermAdmin), body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, host.Cell{Tile: 7, Wall: 2}, env.grid.Cell(3, 4))
}

func TestAdminRegister(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token(t, "*")

	w := env.do(t, http.MethodPost, "/api/admin/register", admin, RegisterRequest{Username: "mod", Password: "longpass", Permissions: []string{"blackTile"}})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/register", admin, RegisterRequest{Username: "MOD", Password: "longpass"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/register", admin, RegisterRequest{Username: "x", Password: "longpass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "mod", Password: "longpass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Add(context.Background(), blacklist.Tile, "Arena", 1))

	w := env.do(t, http.MethodGet, "/api/stats", env.token(t), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 1.0, resp.Data["tile_ids"])
	assert.Equal(t, 1.0, resp.Data["tile_edit_hooks"])
}

func TestServerIntegration_StartStop(t *testing.T) {
	env := newTestEnv(t)
	si := NewServerIntegration(env.server, 0)
	require.NoError(t, si.Start())

	_, port, err := net.SplitHostPort(si.Addr())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, si.Stop(context.Background()))
}
