package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bippity/Invincible-Tiles/internal/api"
	"github.com/bippity/Invincible-Tiles/internal/auth"
	"github.com/bippity/Invincible-Tiles/internal/config"
	"github.com/bippity/Invincible-Tiles/internal/eventbus"
	"github.com/bippity/Invincible-Tiles/internal/host"
	"github.com/bippity/Invincible-Tiles/internal/logging"
	"github.com/bippity/Invincible-Tiles/internal/observability"
	"github.com/bippity/Invincible-Tiles/internal/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $INVINCIBLE_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.LogDir = cfg.Logging.Dir
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.Default().SetLevels(level, logging.TRACE)
	lm := logging.GetLoggerManager()
	lm.SetLevel(level)
	defer lm.CloseAll()
	componentLogger := lm.MustGetLogger

	logging.Info("🛡️ Запуск сервера Invincible Tiles (хранилище=%s)", cfg.Storage.Type)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Error("❌ Ошибка инициализации телеметрии: %v", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// === ХОСТ ===
	hostLog := componentLogger("host")
	regions := host.NewRegionManager()
	for _, r := range cfg.Regions {
		if err := regions.Add(host.Region{Name: r.Name, Area: host.Area{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}}); err != nil {
			logging.Error("❌ Регион %q: %v", r.Name, err)
			os.Exit(1)
		}
	}
	grid := host.NewGrid()
	hooks := host.NewHooks()
	cmdRegistry := host.NewCommandRegistry()
	logging.Info("🗺️ Загружено регионов: %d", len(cfg.Regions))

	// === ШИНА СОБЫТИЙ ===
	busLog := componentLogger("eventbus")
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
		if err != nil {
			logging.Error("❌ Ошибка подключения к NATS %s: %v", cfg.EventBus.URL, err)
			os.Exit(1)
		}
		bus = jsBus
		logging.Info("📨 JetStream шина: %s, stream=%s", cfg.EventBus.URL, cfg.EventBus.Stream)
	} else {
		bus = eventbus.NewMemoryBus(1024)
		logging.Info("📨 Локальная шина событий (одиночный узел)")
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus, busLog); err != nil {
		logging.Warn("Не удалось подписать логгер на шину: %v", err)
	}
	busMetrics, err := eventbus.NewMetricsExporter(bus, registry)
	if err != nil {
		logging.Error("❌ Метрики шины: %v", err)
		os.Exit(1)
	}
	busMetrics.Start(10 * time.Second)
	defer busMetrics.Stop()

	// === РАСШИРЕНИЕ ===
	p := plugin.New(cfg, plugin.Host{
		Hooks:     hooks,
		Commands:  cmdRegistry,
		Regions:   regions,
		World:     grid,
		Broadcast: host.NewLogBroadcaster(hostLog),
	}, plugin.Options{
		Bus:        bus,
		Registerer: registry,
		Logger:     componentLogger("plugin"),
	})
	if err := p.Start(ctx); err != nil {
		logging.Error("❌ Ошибка запуска %s: %v", p.Name(), err)
		os.Exit(1)
	}
	defer func() {
		if err := p.Dispose(); err != nil {
			logging.Error("❌ Ошибка остановки %s: %v", p.Name(), err)
		}
	}()

	// === REST API ===
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	if err != nil {
		logging.Error("❌ JWT: %v", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		logging.Warn("⚠️ auth.jwt_secret не задан: токены действительны только до перезапуска")
	}
	users, err := auth.NewMemoryUserRepoFromConfig(cfg.Auth.Users)
	if err != nil {
		logging.Error("❌ Учётные записи: %v", err)
		os.Exit(1)
	}

	restServer, err := api.NewRestServer(api.Config{
		UserRepo:    users,
		Issuer:      issuer,
		Commands:    cmdRegistry,
		Hooks:       hooks,
		Grid:        grid,
		Store:       p.Store(),
		Logger:      componentLogger("rest"),
		ServiceName: cfg.Telemetry.ServiceName,
		Registry:    registry,
	})
	if err != nil {
		logging.Error("❌ Ошибка создания REST API: %v", err)
		os.Exit(1)
	}
	apiIntegration := api.NewServerIntegration(restServer, cfg.Server.GetRESTPort())
	if err := apiIntegration.Start(); err != nil {
		logging.Error("❌ Ошибка запуска REST API: %v", err)
		os.Exit(1)
	}

	logging.Info("✅ Сервер готов, узел %s", p.NodeID())

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, останавливаемся...")

	// === GRACEFUL SHUTDOWN ===
	if err := apiIntegration.Stop(context.Background()); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}
