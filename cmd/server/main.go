package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository/memory"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository/postgres"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/scheduler"
	schedulerjobs "github.com/wglickman33/mykosherdelivery-sub000/internal/scheduler/jobs"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

type repositories struct {
	giftCards repository.GiftCardRepository
	orders    repository.NursingHomeOrderRepository
	audit     repository.AuditRepository
	ping      func(ctx context.Context) error
	close     func()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "healthcheck":
			os.Exit(runHealthcheck())
		case "migrate":
			if err := runMigrateCommand(os.Args[2:]); err != nil {
				// #nosec G705 -- CLI output only; control characters are stripped.
				fmt.Fprintln(os.Stderr, sanitizeCLIError(err))
				os.Exit(1)
			}
			return
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer logger.Sync() //nolint:errcheck

	if !strings.EqualFold(cfg.App.Env, "development") {
		gin.SetMode(gin.ReleaseMode)
	}

	repos, err := newRepositories(context.Background(), cfg)
	if err != nil {
		logger.Fatal("init storage failed", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer repos.close()
	if cfg.Database.Driver == driverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
	}

	publicKey, err := middleware.LoadRSAPublicKey(cfg.Security.JWTPublicKey, cfg.Security.JWTPublicKeyFile)
	if err != nil {
		logger.Fatal("load jwt public key failed", zap.Error(err))
	}
	if strings.TrimSpace(cfg.Security.InternalToken) == "" {
		logger.Warn("security.internal_token is empty; settlement callbacks will be rejected")
	}

	eventBus := event.NewBus(logger)
	codes := service.NewCodeGenerator()

	giftCardSvc := service.NewGiftCardService(repos.giftCards, repos.audit, codes, eventBus, logger)
	giftCardSvc.SetCodeAttempts(cfg.GiftCard.CodeAttempts)
	orderSvc := service.NewNursingHomeOrderService(repos.orders, repos.audit, codes, eventBus, logger)
	orderSvc.SetLocation(cfg.App.Location)
	settlementSvc := service.NewSettlementService(giftCardSvc, eventBus, logger)
	auditSvc := service.NewAuditService(repos.audit)

	notificationSvc := service.NewNotificationService(nil, logger)
	notificationSvc.Subscribe(eventBus)

	cronRunner := scheduler.NewScheduler(scheduler.Deps{
		LedgerJob: schedulerjobs.NewLedgerJob(giftCardSvc, logger),
		OrderJob:  schedulerjobs.NewOrderJob(orderSvc, logger),
	}, logger)
	cronRunner.Start()
	defer func() {
		stopCtx := cronRunner.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(2 * time.Second):
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(buildCORSMiddleware(cfg))
	router.Use(middleware.RequestLogger(logger))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	readyHandler := func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := repos.ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not_ready",
				"error":  "database unavailable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}

	router.GET("/health", healthHandler)
	router.GET("/health/ready", readyHandler)

	internalGroup := router.Group("/internal")
	internalGroup.Use(middleware.InternalTokenAuth(cfg.Security.InternalToken))
	internalGroup.GET("/metrics", gin.WrapH(promhttp.Handler()))

	services := api.Services{
		GiftCards:  giftCardSvc,
		Orders:     orderSvc,
		Settlement: settlementSvc,
		Audit:      auditSvc,
	}
	limiter := middleware.NewKeyedLimiter(cfg.RateLimit.GiftCardPerMinute, cfg.RateLimit.GiftCardBurst)
	api.RegisterV1Routes(router.Group("/api/v1"), middleware.JWTAuth(publicKey), services, limiter)
	api.RegisterInternalRoutes(router, services, cfg.Security.InternalToken)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	logger.Info("server started",
		zap.String("addr", srv.Addr),
		zap.String("driver", cfg.Database.Driver),
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("build_time", BuildTime),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			logger.Fatal("server exited unexpectedly", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server failed", zap.Error(err))
	}
	eventBus.Wait()
}

func newLogger(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if strings.EqualFold(cfg.App.Env, "development") {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			return nil, fmt.Errorf("invalid log.level: %w", err)
		}
	}

	if cfg.Log.Encoding != "" {
		zapCfg.Encoding = cfg.Log.Encoding
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger failed: %w", err)
	}
	return logger.With(zap.String("service", "mkd-ledger")), nil
}

func newRepositories(ctx context.Context, cfg Config) (*repositories, error) {
	if cfg.Database.Driver == driverMemory {
		store, err := memory.NewStore()
		if err != nil {
			return nil, err
		}
		return &repositories{
			giftCards: store.GiftCards(),
			orders:    store.NursingHomeOrders(),
			audit:     store.AuditLogs(),
			ping:      func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	}

	pool, err := newDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &repositories{
		giftCards: postgres.NewGiftCardRepository(pool),
		orders:    postgres.NewNursingHomeOrderRepository(pool),
		audit:     postgres.NewAuditRepository(pool),
		ping:      pool.Ping,
		close:     pool.Close,
	}, nil
}

func newDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database.url failed: %w", err)
	}

	const maxInt32 = int(^uint32(0) >> 1)
	if cfg.Database.MaxConns > maxInt32 {
		return nil, fmt.Errorf("database.max_conns must be <= %d", maxInt32)
	}

	poolCfg.MaxConns = int32(cfg.Database.MaxConns) // #nosec G115 -- validated upper bound above.

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.PingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database failed: %w", err)
	}

	return pool, nil
}

func buildCORSMiddleware(cfg Config) gin.HandlerFunc {
	origins := make([]string, 0, len(cfg.CORS.AllowOrigins))
	for _, origin := range cfg.CORS.AllowOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		origins = append(origins, trimmed)
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// runMigrateCommand handles `server migrate [up|down]`. Down rolls back one step.
func runMigrateCommand(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	if cfg.Database.Driver != driverPostgres {
		return errors.New("migrations require database.driver=postgres")
	}

	direction := "up"
	if len(args) > 0 {
		direction = strings.ToLower(strings.TrimSpace(args[0]))
	}

	migrationDir := strings.TrimSpace(cfg.Database.MigrationsDir)
	if migrationDir == "" {
		return errors.New("database.migrations_dir is required")
	}
	if _, statErr := os.Stat(migrationDir); statErr != nil {
		return fmt.Errorf("migrations dir %q: %w", migrationDir, statErr)
	}

	migrator, err := migrate.New("file://"+migrationDir, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("init migrator failed: %w", err)
	}
	defer migrator.Close() //nolint:errcheck

	switch direction {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Steps(-1)
	default:
		return fmt.Errorf("unknown migrate direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations failed: %w", err)
	}

	fmt.Printf("migrations %s applied successfully\n", direction)
	return nil
}

func runHealthcheck() int {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health/ready")
	if err != nil {
		return 1
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

func sanitizeCLIError(err error) string {
	if err == nil {
		return ""
	}

	text := strings.ReplaceAll(err.Error(), "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return strings.TrimSpace(text)
}
