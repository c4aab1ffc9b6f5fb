// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/mychat/internal/auth"
	"github.com/jason-s-yu/mychat/internal/avatar"
	"github.com/jason-s-yu/mychat/internal/cache"
	"github.com/jason-s-yu/mychat/internal/chat"
	"github.com/jason-s-yu/mychat/internal/config"
	"github.com/jason-s-yu/mychat/internal/contacts"
	"github.com/jason-s-yu/mychat/internal/database"
	"github.com/jason-s-yu/mychat/internal/handlers"
	"github.com/jason-s-yu/mychat/internal/profile"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// store is everything the services need from persistence.
type store interface {
	contacts.UserStore
	contacts.Repository
	profile.UserStore
	handlers.Accounts
	handlers.NotificationReader
}

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	logger.SetLevel(level)
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, closeDB := openStore(ctx, cfg, logger)
	defer closeDB()

	var events contacts.EventPublisher
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		events = cache.NewPublisher(rdb, cfg.ContactEventsQueue)
		logger.Infof("publishing contact events to %s", cfg.ContactEventsQueue)
	}

	sessions := newSessions(cfg, logger)

	contactSvc := contacts.NewService(db, db, events, logger)
	avatars := avatar.NewService(cfg.AvatarRoot, logger)
	api := &handlers.APIServer{
		Accounts:       db,
		Sessions:       sessions,
		Contacts:       contactSvc,
		Profiles:       profile.NewService(db, contactSvc, avatars, logger),
		Avatars:        avatars,
		Chat:           chat.NewService(cfg.ChatReplyDelay),
		Logger:         logger,
		AllowedOrigins: cfg.Origins(),
		Notifications:  db,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (store, func()) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return database.NewMemory(), func() {}
	}

	pool, err := database.ConnectDB(ctx, cfg.Postgres.ConnString())
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	pg := database.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		logger.Fatalf("schema: %v", err)
	}
	return pg, pool.Close
}

func newSessions(cfg *config.Config, logger *logrus.Logger) *auth.Sessions {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	if cfg.JWTPrivateKeyPath != "" {
		s, err := auth.NewSessionsFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, ttl)
		if err != nil {
			logger.Fatalf("session keys: %v", err)
		}
		return s
	}
	logger.Warn("no JWT key files configured; generated a key pair, sessions will not survive restart")
	s, err := auth.NewSessions(ttl)
	if err != nil {
		logger.Fatalf("session keys: %v", err)
	}
	return s
}
