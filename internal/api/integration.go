package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/logging"
)

// ServerIntegration управляет жизненным циклом HTTP-сервера REST API
type ServerIntegration struct {
	restServer *RestServer
	httpServer *http.Server
	log        *logging.Logger
	addr       string
}

// NewServerIntegration оборачивает RestServer в http.Server на порту port
func NewServerIntegration(rs *RestServer, port int) *ServerIntegration {
	return &ServerIntegration{
		restServer: rs,
		log:        rs.log,
		addr:       fmt.Sprintf(":%d", port),
	}
}

// Start открывает порт и обслуживает запросы в отдельной горутине.
// Ошибка занятого порта возвращается сразу.
func (si *ServerIntegration) Start() error {
	ln, err := net.Listen("tcp", si.addr)
	if err != nil {
		return fmt.Errorf("REST API listen %s: %w", si.addr, err)
	}
	si.addr = ln.Addr().String()

	si.httpServer = &http.Server{
		Handler:           si.restServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := si.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			si.log.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	si.log.Info("✅ REST API сервер запущен на %s", si.addr)
	si.log.Info("📋 Доступные эндпоинты:")
	si.log.Info("   GET  /health                - Проверка состояния")
	si.log.Info("   GET  /metrics               - Prometheus")
	si.log.Info("   POST /api/auth/login        - Вход в систему")
	si.log.Info("   POST /api/commands          - Команда чата (JWT)")
	si.log.Info("   GET  /api/blacklist/:cat    - Черный список (JWT)")
	si.log.Info("   POST /api/edit              - Попытка редактирования (JWT)")
	si.log.Info("   PUT  /api/world/cell        - Запись клетки (JWT, admin)")
	return nil
}

// Addr возвращает фактический адрес после Start
func (si *ServerIntegration) Addr() string {
	return si.addr
}

// Stop останавливает REST API сервер с таймаутом
func (si *ServerIntegration) Stop(ctx context.Context) error {
	if si.httpServer == nil {
		return nil
	}
	si.log.Info("🛑 Остановка REST API сервера...")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := si.httpServer.Shutdown(ctx); err != nil {
		si.log.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		return err
	}

	si.log.Info("✅ REST API сервер остановлен")
	return nil
}
