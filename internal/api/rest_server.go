package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/auth"
	"github.com/bippity/Invincible-Tiles/internal/blacklist"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/bippity/Invincible-Tiles/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// PermAdmin право на администрирование REST API (учётки, правка мира)
const PermAdmin = "admin"

// BlacklistReader часть blacklist.Store, нужная REST API
type BlacklistReader interface {
	Snapshot(cat blacklist.Category) map[string][]int
}

// RestServer представляет REST API сервер
type RestServer struct {
	router   *gin.Engine
	userRepo auth.UserRepository
	issuer   *auth.Issuer
	commands *host.CommandRegistry
	hooks    *host.Hooks
	grid     *host.Grid
	store    BlacklistReader
	log      *logging.Logger
	metrics  *ServerMetrics
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	UserRepo auth.UserRepository
	Issuer   *auth.Issuer
	Commands *host.CommandRegistry
	Hooks    *host.Hooks
	Grid     *host.Grid
	Store    BlacklistReader
	Logger   *logging.Logger

	// ServiceName имя сервиса для otel
	ServiceName string
	// Registry регистр Prometheus; его же отдаёт /metrics
	Registry *prometheus.Registry
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.ServiceName == "" {
		config.ServiceName = "invincible_tiles"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))

	loggerMw := middleware.NewRequestLogger(config.Logger)
	router.Use(loggerMw.Handler())

	promMw, err := middleware.NewPrometheusMiddleware("rest_api", config.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	server := &RestServer{
		router:   router,
		userRepo: config.UserRepo,
		issuer:   config.Issuer,
		commands: config.Commands,
		hooks:    config.Hooks,
		grid:     config.Grid,
		store:    config.Store,
		log:      config.Logger,
		metrics:  NewServerMetrics(),
	}

	// Настраиваем маршруты
	server.setupRoutes()

	return server, nil
}

// Handler возвращает http.Handler сервера (для http.Server и тестов)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	// Эндпоинт для аутентификации (без JWT защиты)
	api.POST("/auth/login", rs.handleLogin)

	// Защищенные эндпоинты (требуют JWT)
	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.POST("/commands", rs.handleCommand)
		protected.GET("/blacklist/:category", rs.handleBlacklist)
		protected.POST("/edit", rs.handleEdit)
		protected.GET("/stats", rs.handleStats)

		// Административные эндпоинты
		admin := protected.Group("/")
		admin.Use(rs.requirePermission(PermAdmin))
		{
			admin.PUT("/world/cell", rs.handleSetCell)
			admin.POST("/admin/register", rs.handleAdminRegister)
		}
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success     bool     `json:"success"`
	Token       string   `json:"token,omitempty"`
	Message     string   `json:"message"`
	Permissions []string `json:"permissions,omitempty"`
}

// RegisterRequest представляет запрос на регистрацию
type RegisterRequest struct {
	Username    string   `json:"username" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	Permissions []string `json:"permissions"`
}

// CommandRequest команда чата от имени владельца токена
type CommandRequest struct {
	Command string   `json:"command" binding:"required"`
	Args    []string `json:"args"`
}

// EditRequest попытка редактирования клетки
type EditRequest struct {
	X        int             `json:"x"`
	Y        int             `json:"y"`
	Action   host.EditAction `json:"action"`
	EditData int             `json:"edit_data"`
}

// CellRequest запись клетки мира
type CellRequest struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Tile int `json:"tile"`
	Wall int `json:"wall"`
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handleLogin обрабатывает запрос на вход
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	user, err := rs.userRepo.ValidateCredentials(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, LoginResponse{
			Success: false,
			Message: "Неверное имя пользователя или пароль",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	// Генерируем JWT токен
	token, err := rs.issuer.GenerateJWT(user.Username, user.Permissions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, LoginResponse{
			Success: false,
			Message: "Ошибка генерации токена",
		})
		return
	}

	rs.log.Info("🔑 REST вход: %s", user.Username)
	c.JSON(http.StatusOK, LoginResponse{
		Success:     true,
		Token:       token,
		Message:     "Успешная авторизация",
		Permissions: user.Permissions,
	})
}

// handleAdminRegister создаёт учётку REST-администратора до перезапуска
func (rs *RestServer) handleAdminRegister(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 30 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Имя пользователя должно быть от 3 до 30 символов",
		})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Пароль должен быть минимум 6 символов",
		})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка обработки пароля",
		})
		return
	}

	user, err := rs.userRepo.CreateUser(req.Username, passwordHash, req.Permissions)
	if errors.Is(err, auth.ErrUserExists) {
		c.JSON(http.StatusConflict, GenericResponse{
			Success: false,
			Message: "Пользователь уже существует",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, GenericResponse{
			Success: false,
			Message: "Ошибка создания пользователя",
		})
		return
	}

	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Пользователь успешно создан",
		Data: map[string]interface{}{
			"user_id":     user.ID,
			"username":    user.Username,
			"permissions": user.Permissions,
		},
	})
}

// handleCommand выполняет команду чата от имени владельца токена
func (rs *RestServer) handleCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	actor := actorFromContext(c)
	err := rs.commands.Run(c.Request.Context(), actor, req.Command, req.Args)

	status := http.StatusOK
	switch {
	case errors.Is(err, host.ErrUnknownCommand):
		status = http.StatusNotFound
	case errors.Is(err, host.ErrPermissionDenied):
		status = http.StatusForbidden
	}

	// Успех команды определяет её последнее сообщение: ошибки валидации
	// и записи приходят как error-сообщения игроку.
	messages := actor.Messages()
	success := err == nil
	if success && len(messages) > 0 && messages[len(messages)-1].Kind == host.MessageError {
		success = false
	}

	c.JSON(status, GenericResponse{
		Success: success,
		Message: req.Command,
		Data:    gin.H{"messages": messages},
	})
}

// handleBlacklist возвращает защищённые ID категории по зонам
func (rs *RestServer) handleBlacklist(c *gin.Context) {
	cat, err := blacklist.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Категория должна быть tile или wall",
		})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: cat.String(),
		Data:    rs.store.Snapshot(cat),
	})
}

// handleEdit прогоняет событие редактирования через хуки хоста.
// Если никто его не отклонил, правка применяется к миру.
func (rs *RestServer) handleEdit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	ev := &host.TileEditEvent{
		Player:   actorFromContext(c),
		X:        req.X,
		Y:        req.Y,
		Action:   req.Action,
		EditData: req.EditData,
	}
	handled := rs.hooks.DispatchTileEdit(ev)
	if !handled {
		rs.grid.ApplyEdit(ev)
	}

	c.JSON(http.StatusOK, gin.H{
		"handled": handled,
		"action":  req.Action.String(),
		"cell":    rs.grid.Cell(req.X, req.Y),
	})
}

// handleSetCell записывает клетку мира
func (rs *RestServer) handleSetCell(c *gin.Context) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса",
		})
		return
	}

	cell := host.Cell{Tile: req.Tile, Wall: req.Wall}
	rs.grid.SetCell(req.X, req.Y, cell)
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Клетка записана",
		Data:    cell,
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	for _, cat := range blacklist.Categories {
		snapshot := rs.store.Snapshot(cat)
		ids := 0
		for _, zone := range snapshot {
			ids += len(zone)
		}
		stats[cat.String()+"_zones"] = len(snapshot)
		stats[cat.String()+"_ids"] = ids
	}
	stats["tile_edit_hooks"] = rs.hooks.TileEditHandlers()
	stats["commands"] = rs.commands.Names()
	stats["uptime"] = rs.metrics.GetUptime()
	stats["memory"] = rs.metrics.GetDetailedMemoryStats()
	if cpuPercent, err := rs.metrics.GetCPUUsage(); err == nil {
		stats["cpu_percent"] = cpuPercent
	} else {
		rs.log.Debug("CPU недоступен: %v", err)
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика сервера",
		Data:    stats,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"uptime": rs.metrics.GetUptime(),
	})
}
