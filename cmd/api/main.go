package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unicampus/campus-backend/api/routes"
	"github.com/unicampus/campus-backend/internal/auth"
	"github.com/unicampus/campus-backend/internal/bridge"
	"github.com/unicampus/campus-backend/internal/captcha"
	"github.com/unicampus/campus-backend/internal/catalog"
	"github.com/unicampus/campus-backend/internal/checkout"
	"github.com/unicampus/campus-backend/internal/clubs"
	"github.com/unicampus/campus-backend/internal/feed"
	"github.com/unicampus/campus-backend/internal/notifications"
	"github.com/unicampus/campus-backend/internal/orders"
	"github.com/unicampus/campus-backend/internal/points"
	"github.com/unicampus/campus-backend/internal/users"
	"github.com/unicampus/campus-backend/internal/vouchers"
	"github.com/unicampus/campus-backend/pkg/auth/session"
	"github.com/unicampus/campus-backend/pkg/config"
	"github.com/unicampus/campus-backend/pkg/db"
	"github.com/unicampus/campus-backend/pkg/identity"
	"github.com/unicampus/campus-backend/pkg/instance"
	"github.com/unicampus/campus-backend/pkg/logger"
	"github.com/unicampus/campus-backend/pkg/metrics"
	"github.com/unicampus/campus-backend/pkg/migrate"
	"github.com/unicampus/campus-backend/pkg/outbox"
	"github.com/unicampus/campus-backend/pkg/redis"
	"github.com/unicampus/campus-backend/pkg/telemetry"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, "campus-api")
	requireResource(ctx, logg, "telemetry", err)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)

	svc, err := buildServices(cfg, logg, dbClient, redisClient, sessionManager)
	requireResource(ctx, logg, "services", err)

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: readHeaderTimeout,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			svc,
		),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, sessionManager *session.Manager) (routes.Services, error) {
	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	feedPublisher, err := feed.NewRedisPublisher(redisClient, logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("feed publisher: %w", err)
	}
	feedSubscriber, err := feed.NewSubscriber(redisClient, logg)
	if err != nil {
		return routes.Services{}, fmt.Errorf("feed subscriber: %w", err)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("auth service: %w", err)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("register service: %w", err)
	}

	bridgeService, err := buildBridge(cfg, logg, authService, registerService)
	if err != nil {
		return routes.Services{}, err
	}

	usersService, err := users.NewService(users.ServiceParams{Repo: userRepo, PasswordConfig: cfg.Password})
	if err != nil {
		return routes.Services{}, fmt.Errorf("users service: %w", err)
	}

	catalogRepo := catalog.NewRepository(conn)
	catalogService, err := catalog.NewService(catalogRepo)
	if err != nil {
		return routes.Services{}, fmt.Errorf("catalog service: %w", err)
	}

	ordersRepo := orders.NewRepository(conn)
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Config:   cfg.Checkout,
		Tx:       dbClient,
		Orders:   ordersRepo,
		Products: catalogRepo,
		Users:    userRepo,
		Flags:    redisClient,
		Outbox:   outboxSvc,
		Feed:     feedPublisher,
		Logger:   logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("checkout service: %w", err)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		Tx:     dbClient,
		Outbox: outboxSvc,
		Feed:   feedPublisher,
		Logger: logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("orders service: %w", err)
	}

	clubsService, err := clubs.NewService(clubs.ServiceParams{
		Repo:           clubs.NewRepository(conn),
		Tx:             dbClient,
		MaxMemberships: cfg.Clubs.MaxMemberships,
		Feed:           feedPublisher,
		Logger:         logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("clubs service: %w", err)
	}

	ledger := points.NewLedger(conn)
	pointsService, err := points.NewService(points.ServiceParams{
		Ledger: ledger,
		Tx:     dbClient,
		Outbox: outboxSvc,
		Clubs:  clubsService,
		Feed:   feedPublisher,
		Logger: logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("points service: %w", err)
	}

	vouchersService, err := vouchers.NewService(vouchers.ServiceParams{
		Repo:   vouchers.NewRepository(conn),
		Ledger: ledger,
		Tx:     dbClient,
		Outbox: outboxSvc,
		Feed:   feedPublisher,
		Logger: logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("vouchers service: %w", err)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return routes.Services{}, fmt.Errorf("notifications service: %w", err)
	}

	return routes.Services{
		Auth:     authService,
		Register: registerService,
		Bridge:   bridgeService,
		Captcha: captcha.NewService(captcha.ServiceParams{
			Config:     cfg.Captcha,
			HTTPClient: telemetry.NewHTTPClient(cfg.Captcha.Timeout),
		}),
		Users:         usersService,
		Catalog:       catalogService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Clubs:         clubsService,
		Points:        pointsService,
		Vouchers:      vouchersService,
		Notifications: notificationsService,
		Feed:          feedSubscriber,
	}, nil
}

// buildBridge leaves the verifier unset when no project is configured; the
// endpoint then answers every call with INTERNAL_ERROR.
func buildBridge(cfg *config.Config, logg *logger.Logger, authService auth.Service, registerService auth.RegisterService) (bridge.Service, error) {
	params := bridge.ServiceParams{
		Auth:     authService,
		Register: registerService,
		Logger:   logg,
	}
	if cfg.Bridge.ProjectID != "" {
		certs, err := identity.NewHTTPCertSource(cfg.Bridge.CertsURL, telemetry.NewHTTPClient(cfg.Bridge.FetchTimeout))
		if err != nil {
			return nil, fmt.Errorf("identity certs: %w", err)
		}
		verifier, err := identity.NewVerifier(identity.VerifierParams{
			ProjectID: cfg.Bridge.ProjectID,
			Issuer:    cfg.Bridge.Issuer(),
			Keys:      certs,
			Leeway:    cfg.Bridge.ClockSkew,
		})
		if err != nil {
			return nil, fmt.Errorf("identity verifier: %w", err)
		}
		params.Verifier = verifier
	} else {
		logg.Warn(context.Background(), "session bridge project id not configured")
	}
	if deriver, err := bridge.NewDeriver(cfg.Bridge); err == nil {
		params.Deriver = deriver
	} else {
		logg.Warn(logg.WithField(context.Background(), "reason", err.Error()), "session bridge disabled")
	}
	return bridge.NewService(params)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
