package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/werawoot/Krua-Thai1-sub006/internal/config"
	"github.com/werawoot/Krua-Thai1-sub006/internal/database"
	"github.com/werawoot/Krua-Thai1-sub006/internal/events"
	"github.com/werawoot/Krua-Thai1-sub006/internal/handlers"
	"github.com/werawoot/Krua-Thai1-sub006/internal/logging"
	"github.com/werawoot/Krua-Thai1-sub006/internal/metrics"
	"github.com/werawoot/Krua-Thai1-sub006/internal/middleware"
	"github.com/werawoot/Krua-Thai1-sub006/internal/models"
	"github.com/werawoot/Krua-Thai1-sub006/internal/routing"
	"github.com/werawoot/Krua-Thai1-sub006/internal/services"
	"github.com/werawoot/Krua-Thai1-sub006/internal/websocket"
)

func main() {
	envLoaded, envErr := config.LoadEnvFile("")

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	switch {
	case envErr != nil:
		logger.Warn(".env file could not be read", zap.Error(envErr))
	case !envLoaded:
		logger.Info(".env file not found, using environment variables from system")
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("krua delivery backend starting", zap.String("env", cfg.Environment))

	db, err := database.Connect(ctx, cfg.DatabaseURL, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("database migrations completed")

	if !cfg.IsProduction() {
		if err := database.SeedUsers(ctx, db, logger); err != nil {
			return err
		}
	}
	if err := database.SeedZones(ctx, db, logger); err != nil {
		return err
	}

	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	zones, err := database.ListZones(ctx, db)
	if err != nil {
		return err
	}
	settings.Zones = database.MergeZones(settings.Zones, zones)
	logger.Info("postal zones loaded", zap.Int("zones", len(settings.Zones)))

	solver := newSolver(ctx, cfg, logger)

	metrics.RegisterDefault()

	hub := websocket.NewHub(logger.Named("websocket"))
	observers := []routing.StageObserver{metrics.StageObserver{}}

	var relay *events.RedisRelay
	if cfg.RedisURL != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		relay = events.NewRedisRelay(rdb, "", logger.Named("relay"))
		// the relay delivers to this instance's hub as well as the others
		observers = append(observers, relay)
		logger.Info("redis stage relay enabled")
	} else {
		observers = append(observers, hub)
	}

	optimizer := routing.NewOptimizer(
		database.NewSubscriptionStore(db),
		metrics.InstrumentSolver(solver),
		settings,
		logger.Named("optimizer"),
		observers...,
	)

	var notifier handlers.RoutesReadyNotifier
	if fcm := newFCM(ctx, cfg, logger); fcm != nil {
		notifier = handlers.NewPushNotifier(db, fcm)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, db, optimizer, notifier, hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if relay != nil {
		sub, err := relay.Subscribe(ctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			relay.Run(gctx)
			return nil
		})
		g.Go(func() error {
			return sub.Forward(gctx, hub.PublishStage)
		})
	}

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRouter(cfg *config.Config, db *sqlx.DB, optimizer *routing.Optimizer, notifier handlers.RoutesReadyNotifier, hub *websocket.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Post("/api/auth/login", handlers.Login(db, cfg.JWTSecret, logger.Named("auth")))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(hub, cfg.JWTSecret))

	routeLog := logger.Named("routes")
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Post("/driver/fcm-token", handlers.RegisterFCMToken(db, logger.Named("devices")))
		})

		// Manager endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RequireRole(models.RoleAdmin))

			r.Get("/manager/routes/demand", handlers.PreviewDemand(optimizer, routeLog))
			r.With(middleware.RateLimit(cfg.OptimizeRatePerMinute)).
				Post("/manager/routes/optimize", handlers.OptimizeRoutes(optimizer, notifier, routeLog))
		})
	})

	return r
}

func newSolver(ctx context.Context, cfg *config.Config, logger *zap.Logger) routing.Solver {
	creds := cfg.SolverCredentials()
	if !creds.HasCredential() {
		logger.Warn("no route optimization credential configured, optimization runs will fail")
	}
	return services.NewRouteOptimizationFromCredentials(ctx, creds, logger.Named("solver"))
}

// newFCM returns nil when push notifications are not configured or fail to start
func newFCM(ctx context.Context, cfg *config.Config, logger *zap.Logger) *services.FCMService {
	creds, err := services.LoadCredentialsJSON(cfg.FirebaseCredentialsBase64, cfg.FirebaseCredentialsFile)
	if err != nil {
		logger.Warn("failed to load Firebase credentials (push notifications disabled)", zap.Error(err))
		return nil
	}
	if creds == nil {
		logger.Info("Firebase credentials not set, push notifications disabled")
		return nil
	}
	fcm, err := services.NewFCMService(ctx, creds, logger.Named("fcm"))
	if err != nil {
		logger.Warn("failed to initialize FCM (push notifications disabled)", zap.Error(err))
		return nil
	}
	logger.Info("Firebase Cloud Messaging initialized")
	return fcm
}
