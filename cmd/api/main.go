package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/conecta-ies/solicitation-service/internal/api/http"
	"github.com/conecta-ies/solicitation-service/internal/api/http/handlers"
	"github.com/conecta-ies/solicitation-service/internal/auth"
	"github.com/conecta-ies/solicitation-service/internal/clock"
	"github.com/conecta-ies/solicitation-service/internal/config"
	"github.com/conecta-ies/solicitation-service/internal/events"
	"github.com/conecta-ies/solicitation-service/internal/observability"
	"github.com/conecta-ies/solicitation-service/internal/persistence"
	"github.com/conecta-ies/solicitation-service/internal/protocol"
	"github.com/conecta-ies/solicitation-service/internal/realtime"
	"github.com/conecta-ies/solicitation-service/internal/repository"
	"github.com/conecta-ies/solicitation-service/internal/service"
	"github.com/conecta-ies/solicitation-service/internal/storage"
	"github.com/conecta-ies/solicitation-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	solicitationRepo := repository.NewSolicitationRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	historyRepo := repository.NewHistoryRepository(pool)

	if err := persistence.SeedAdminUser(ctx, userRepo, cfg.Auth, logger); err != nil {
		logger.Fatal("failed to seed admin user", zap.Error(err))
	}

	systemClock := clock.System()
	dispatcher := events.NewInMemoryDispatcher()

	hub := realtime.NewHub(cfg.Realtime.SendBuffer, logger)
	realtime.AttachDispatcher(hub, dispatcher, systemClock)

	protocols := protocol.NewGenerator(
		protocol.NewRedisSequencer(redis.Client),
		solicitationRepo,
		systemClock,
		logger,
	)

	solicitationService := service.NewSolicitationService(service.SolicitationDependencies{
		SolicitationRepo: solicitationRepo,
		AttachmentRepo:   attachmentRepo,
		HistoryRepo:      historyRepo,
		UserRepo:         userRepo,
		Protocols:        protocols,
		Dispatcher:       dispatcher,
		Tx:               pg,
		Clock:            systemClock,
	})
	authService := service.NewAuthService(cfg.Auth, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger)
	worker.StartNotificationWorker(notificationService)

	blobs, err := storage.NewLocalStore(cfg.Uploads)
	if err != nil {
		logger.Fatal("failed to init upload store", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Uploads.MaxFileBytes) * 2,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Solicitations:  handlers.NewSolicitationsHandler(solicitationService, blobs, cfg.Uploads.MaxFileBytes),
		AuthMiddleware: authMiddleware,
		Hub:            hub,
		Logger:         logger,
		UploadsDir:     cfg.Uploads.Dir,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
