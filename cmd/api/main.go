package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/jobcard-service/internal/api/http"
	"github.com/spec-kit/jobcard-service/internal/api/http/handlers"
	"github.com/spec-kit/jobcard-service/internal/api/validation"
	"github.com/spec-kit/jobcard-service/internal/auth"
	"github.com/spec-kit/jobcard-service/internal/config"
	"github.com/spec-kit/jobcard-service/internal/events"
	"github.com/spec-kit/jobcard-service/internal/identitysync"
	"github.com/spec-kit/jobcard-service/internal/observability"
	"github.com/spec-kit/jobcard-service/internal/persistence"
	"github.com/spec-kit/jobcard-service/internal/repository"
	"github.com/spec-kit/jobcard-service/internal/service"
	"github.com/spec-kit/jobcard-service/internal/web"
	"github.com/spec-kit/jobcard-service/internal/worker"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	policy, err := auth.LoadPolicy(cfg.Auth.PolicyPath)
	if err != nil {
		logger.Fatal("failed to load permission policy", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewAsyncDispatcher(logger, cfg.Events.Workers, cfg.Events.QueueSize)
	identitySync := identitysync.New(cfg.Broker, logger)
	defer identitySync.Close() //nolint:errcheck

	pool := pg.PoolHandle()
	tx := repository.NewTransactionManager(pool)
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	userRoleRepo := repository.NewUserRoleRepository(pool)
	verificationRepo := repository.NewVerificationRepository(pool)
	jobCardRepo := repository.NewJobCardRepository(pool)
	templateRepo := repository.NewTemplateRepository(pool)
	historyRepo := repository.NewStatusHistoryRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())

	registrationService := service.NewRegistrationService(cfg.Auth, service.RegistrationDependencies{
		UserRepo:         userRepo,
		VerificationRepo: verificationRepo,
		Tx:               tx,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:     userRepo,
		UserRoleRepo: userRoleRepo,
		Tokens:       tokens,
		Logger:       logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:     userRepo,
		RoleRepo:     roleRepo,
		UserRoleRepo: userRoleRepo,
		Tx:           tx,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	roleService := service.NewRoleService(service.RoleDependencies{
		RoleRepo:     roleRepo,
		UserRoleRepo: userRoleRepo,
		Policy:       policy,
	})
	templateService := service.NewTemplateService(templateRepo)
	jobCardService := service.NewJobCardService(service.JobCardDependencies{
		JobCardRepo:    jobCardRepo,
		TemplateRepo:   templateRepo,
		HistoryRepo:    historyRepo,
		Numbers:        service.NewJobNumberGenerator(redis.Client, jobCardRepo, cfg.Jobs.NumberPrefix, logger, nil),
		Tx:             tx,
		Dispatcher:     dispatcher,
		Logger:         logger,
		CategoryPrefix: cfg.Jobs.CategoryPrefix,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		JobCards:       jobCardService,
		AssignmentRepo: assignmentRepo,
		UserRepo:       userRepo,
		Tx:             tx,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})

	worker.StartEventListeners(service.NewEventListeners(service.ListenerDependencies{
		Dispatcher:   dispatcher,
		UserRepo:     userRepo,
		UserRoleRepo: userRoleRepo,
		IdentitySync: identitySync,
		Metrics:      metrics,
		Logger:       logger,
	}))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		Views:        web.NewEngine(),
		ErrorHandler: httptransport.NewErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	v := validation.New()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		ErrorPage:      handlers.NewErrorPageHandler(),
		Wireframes:     handlers.NewWireframesHandler(registrationService, v, logger),
		Auth:           handlers.NewAuthHandler(authService, roleService, v, cfg.App.Env == "production"),
		Users:          handlers.NewUsersHandler(userService, v),
		Roles:          handlers.NewRolesHandler(roleService, v),
		Templates:      handlers.NewTemplatesHandler(templateService, v),
		JobCards:       handlers.NewJobCardsHandler(jobCardService, assignmentService, v),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo, userRoleRepo),
		Policy:         policy,
		RateLimiter:    httptransport.NewRateLimiter(cfg.RateLimit, redis.Client, logger),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		worker.NewOverdueScanner(jobCardService, cfg.Jobs.OverdueInterval, logger).Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn("event dispatcher did not drain", zap.Error(err))
	}
}
