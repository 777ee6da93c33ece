package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/auth"
	"github.com/princinho/eventhub/config"
	"github.com/princinho/eventhub/controllers"
	"github.com/princinho/eventhub/database"
	"github.com/princinho/eventhub/logger"
	"github.com/princinho/eventhub/mailer"
	"github.com/princinho/eventhub/metrics"
	"github.com/princinho/eventhub/middleware"
	"github.com/princinho/eventhub/repository"
	"github.com/princinho/eventhub/router"
	"github.com/princinho/eventhub/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.Init(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx := context.Background()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	users, ledger, events, closeStore, err := openStores(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer closeStore()

	if seeded, err := repository.SeedCreator(ctx, users, cfg.Seed); err != nil {
		return fmt.Errorf("seed creator: %w", err)
	} else if seeded {
		zlog.Info("seeded creator account", zap.String("email", cfg.Seed.Email))
	}

	uploader, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	zlog.Info("storage ready", zap.String("driver", uploader.Name()))

	m := metrics.New()

	var sender mailer.Sender = mailer.NewLogSender(zlog)
	if cfg.Mail.SendGridAPIKey != "" {
		sender = mailer.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.From)
	} else {
		zlog.Warn("SENDGRID_API_KEY not set, mails are only logged")
	}

	limiter, err := newLimiter(cfg.RateLimit, zlog)
	if err != nil {
		return err
	}

	login, err := auth.NewLoginStrategy(cfg.Auth.LoginMethod, users)
	if err != nil {
		return err
	}

	deps := &controllers.Deps{
		Config:        cfg,
		Users:         users,
		Events:        events,
		Sessions:      auth.NewSessionIssuer(users, ledger, cfg.Auth, zlog),
		Actions:       auth.NewActionTokenIssuer(users, cfg.Auth.Secret),
		LoginStrategy: login,
		Mailer:        mailer.New(sender, cfg.App.PublicBaseURL, zlog, m),
		Uploader:      uploader,
		Files:         storage.NewFileValidator(cfg.Storage),
		Metrics:       m,
		Log:           zlog,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router.New(deps, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	zlog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (
	repository.CredentialStore, repository.TokenLedger, repository.EventStore, func(), error,
) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		zlog.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryUserStore(), repository.NewMemoryTokenLedger(), repository.NewMemoryEventStore(), func() {}, nil
	}

	client, err := database.Connect(ctx, cfg.Database, zlog)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	db := client.Database(cfg.Database.Name)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}

	closeFn := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			zlog.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	return repository.NewMongoUserStore(db.Collection(database.UsersCollection)),
		repository.NewMongoTokenLedger(db.Collection(database.RefreshTokensCollection)),
		repository.NewMongoEventStore(db.Collection(database.EventsCollection)),
		closeFn, nil
}

func newLimiter(cfg config.RateLimitConfig, zlog *zap.Logger) (middleware.Limiter, error) {
	if cfg.RedisURL == "" {
		return middleware.NewMemoryLimiter(cfg.Requests, cfg.Window), nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zlog.Warn("redis unreachable, rate limiting fails open until it recovers", zap.Error(err))
	}
	return middleware.NewRedisLimiter(client, cfg.Requests, cfg.Window), nil
}
