package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/alouzou/sondage/backend/internal/auth"
	"github.com/alouzou/sondage/backend/internal/config"
	"github.com/alouzou/sondage/backend/internal/httputil"
	"github.com/alouzou/sondage/backend/internal/logging"
	"github.com/alouzou/sondage/backend/internal/middleware"
	"github.com/alouzou/sondage/backend/internal/store"
	"github.com/alouzou/sondage/backend/internal/survey"
)

// accountStore is satisfied by both the Postgres and the in-memory store.
type accountStore interface {
	auth.UserStore
	survey.SurveyStore
	survey.UserStore
}

func main() {
	cfg := config.Load()
	log := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid configuration", err)
	}
	if cfg.DotenvLoaded {
		log.Info("loaded .env file")
	}

	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	var db accountStore
	if cfg.PostgresDSN != "" {
		pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			fatal(log, "postgres connect", err)
		}
		defer pgPool.Close()
		pgStore := store.NewPostgresStore(pgPool)
		if err := pgStore.Migrate(ctx); err != nil {
			fatal(log, "postgres migrate", err)
		}
		db = pgStore
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory store")
		db = store.NewMemoryStore()
	}

	// ── MongoDB ──────────────────────────────────────────────
	var activity survey.ActivityLog
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			fatal(log, "mongo connect", err)
		}
		defer mongoClient.Disconnect(context.Background())
		mongoLog := store.NewMongoActivityLog(mongoClient.Database(cfg.MongoDB))
		if err := mongoLog.EnsureIndexes(ctx); err != nil {
			log.Warn("mongo index creation failed", "err", err)
		}
		activity = mongoLog
	} else {
		log.Warn("MONGO_URI not set, activity log kept in memory")
		activity = store.NewMemoryActivityLog()
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		fatal(log, "redis connect", err)
	}
	defer rdb.Close()
	sessions := auth.NewSessionStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	var files survey.FileStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := store.NewMinioStore(
			ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
			cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
		)
		if err != nil {
			fatal(log, "minio connect", err)
		}
		files = minioStore
	} else {
		log.Warn("MINIO_ENDPOINT not set, exports kept in memory")
		files = store.NewMemoryBlobStore()
	}

	// ── Bootstrap admin ──────────────────────────────────────
	if cfg.AdminUsername != "" {
		changed, err := auth.EnsureAdmin(ctx, db, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			fatal(log, "bootstrap admin", err)
		}
		if changed {
			log.Info("bootstrap admin ready", "username", cfg.AdminUsername)
		}
	}

	// ── Handlers ─────────────────────────────────────────────
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	authHandler := auth.NewHandler(db, sessions, tokens, log)
	surveyService := survey.NewService(db, db, activity, files, log)
	surveyHandler := survey.NewHandler(surveyService, log)
	requireAuth := middleware.RequireAuth(sessions, tokens)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(requireAuth).Get("/me", authHandler.Me)
	})

	r.Route("/api/surveys", func(r chi.Router) {
		r.Use(requireAuth)
		surveyHandler.Register(r)
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("backend listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("shutdown failed", "err", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "err", err)
	os.Exit(1)
}
