// Package main - точка входа worker'а электронного журнала.
//
// Worker слушает события (записанная оценка, завершение курса, вход
// пользователя), пересчитывает оценки и GPA, начисляет очки и достижения
// и рассылает уведомления.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alem-hub/gradebook/config"
	"github.com/alem-hub/gradebook/internal/application/command"
	"github.com/alem-hub/gradebook/internal/application/eventhandler"
	"github.com/alem-hub/gradebook/internal/application/saga"
	notify "github.com/alem-hub/gradebook/internal/domain/notification"
	"github.com/alem-hub/gradebook/internal/domain/shared"
	"github.com/alem-hub/gradebook/internal/infrastructure/catalog"
	"github.com/alem-hub/gradebook/internal/infrastructure/messaging"
	"github.com/alem-hub/gradebook/internal/infrastructure/notification"
	"github.com/alem-hub/gradebook/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/gradebook/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/gradebook/internal/infrastructure/scheduler"
	"github.com/alem-hub/gradebook/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/gradebook/pkg/logger"
	"github.com/alem-hub/gradebook/pkg/timeutil"
	"github.com/alem-hub/gradebook/pkg/tracing"
)

// eventBus - шина, которую worker закрывает при остановке.
type eventBus interface {
	shared.EventBus
	Close() error
	Metrics() *messaging.EventBusMetrics
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logOpts := logger.DefaultOptions()
	logOpts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.Observability.LogFormat != "" {
		logOpts.Format = cfg.Observability.LogFormat
	}
	log := logger.New(logOpts).With(logger.String("app", cfg.App.Name), logger.String("env", string(cfg.App.Environment)))
	defer func() { _ = log.Sync() }()

	timeutil.SetLocation(cfg.App.Location)

	log.Info("starting gradebook worker",
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
		logger.Bool("redis", !cfg.Redis.Disabled),
	)

	shutdownTracing, err := tracing.Setup(cfg.Observability.TracingEnabled, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	dbCfg := postgres.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	dbCfg.MaxConns = cfg.Database.MaxConns
	dbCfg.MinConns = cfg.Database.MinConns
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	dbConn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date")
	}

	uow := postgres.NewUnitOfWork(dbConn, log)
	achievements := postgres.NewAchievementRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. КАТАЛОГ ДОСТИЖЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Engine.SeedCatalog {
		defs, err := catalog.Load(cfg.Engine.CatalogPath)
		if err != nil {
			return fmt.Errorf("failed to load achievement catalog: %w", err)
		}
		if err := catalog.NewSeeder(achievements, uow, log).Seed(ctx, defs); err != nil {
			return fmt.Errorf("failed to seed achievement catalog: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS, ШИНА СОБЫТИЙ, УВЕДОМЛЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.WorkerPoolSize = cfg.Engine.EventWorkers

	deps := command.Deps{
		UnitOfWork:   uow,
		Courses:      postgres.NewCourseRepository(dbConn),
		Goals:        postgres.NewGoalRepository(dbConn),
		Progress:     postgres.NewProgressRepository(dbConn),
		Activity:     postgres.NewActivityRepository(dbConn),
		Achievements: achievements,
		Profiles:     postgres.NewProfileRepository(dbConn),
	}

	var (
		bus    eventBus
		sender notify.Sender
	)

	if cfg.Redis.Disabled {
		bus = messaging.NewInMemoryEventBus(busCfg)
		sender = notification.NewLogSender(log)
		log.Warn("redis disabled: in-memory event bus, no award lock, notifications go to the log")
	} else {
		cache, err := redis.NewCache(redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   redis.DefaultConfig().MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = cache.Close() }()
		log.Info("redis connection established", logger.String("addr", cfg.Redis.Addr))

		deps.GradeCache = redis.NewCourseGradeCache(cache, cfg.Engine.BreakdownCacheTTL)
		deps.Lock = redis.NewAwardLock(cache)

		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(cache.Client()),
			ChannelName:    cfg.Engine.EventChannel,
			LocalBusConfig: busCfg,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		bus = redisBus
		sender = notification.NewRedisSender(cache.Client(), cfg.Engine.NotifyQueueCap)
	}

	dispatcher := notification.NewDispatcher(sender, notification.DefaultDispatcherConfig(), log)
	deps.Dispatcher = dispatcher
	deps.Publisher = bus

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ДВИЖОК И ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	engineCfg := command.DefaultConfig()
	engineCfg.AwardFlow = saga.AwardFlowConfig{
		LockTTL:             cfg.Engine.AwardLockTTL,
		EnableNotifications: cfg.Engine.NotificationsEnabled,
	}
	engine := command.NewEngine(deps, engineCfg, log)

	if err := eventhandler.Register(bus, engine, log); err != nil {
		_ = bus.Close()
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{Logger: log})
	if err := sched.Register(jobs.NewDeadLetterReplayJob(dispatcher), scheduler.Every(cfg.Engine.DeadLetterReplayInterval)); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}
	if err := sched.Register(jobs.NewWorkerStatsJob(bus, dispatcher, log), scheduler.Every(cfg.Engine.StatsInterval)); err != nil {
		return fmt.Errorf("failed to register job: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("gradebook worker is running", logger.String("channel", cfg.Engine.EventChannel))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()

	log.Info("shutting down", logger.Duration("timeout", cfg.App.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var errs []error
	done := make(chan error, 1)
	go func() {
		// Jobs stop before the bus closes.
		_ = sched.Stop()
		done <- bus.Close()
	}()
	select {
	case err := <-done:
		errs = append(errs, err)
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("event bus: %w", shutdownCtx.Err()))
	}
	errs = append(errs, shutdownTracing(shutdownCtx))

	if err := errors.Join(errs...); err != nil {
		log.Error("shutdown finished with errors", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}
