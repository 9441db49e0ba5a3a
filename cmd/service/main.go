package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gitlab.com/dirk.krummacker/contacts-service/internal/config"
	"gitlab.com/dirk.krummacker/contacts-service/internal/flash"
	"gitlab.com/dirk.krummacker/contacts-service/internal/logger"
	"gitlab.com/dirk.krummacker/contacts-service/internal/service"
	"gitlab.com/dirk.krummacker/contacts-service/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("could not load configuration", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		fmt.Println("could not create logger", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("contacts service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	contacts, err := store.New(db, cfg.DBDriver)
	if err != nil {
		return err
	}
	defer contacts.Close()

	flashStore, err := newFlashStore(ctx, cfg)
	if err != nil {
		return err
	}

	svc := service.New(contacts, service.Options{
		Logger:         log,
		Flash:          flashStore,
		RequestLogging: cfg.RequestLogging(),
		Production:     cfg.IsProduction(),
		RateLimit:      cfg.RateLimit,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", server.Addr), zap.String("driver", cfg.DBDriver))
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newFlashStore connects to Redis if the flash data is to be kept there.
func newFlashStore(ctx context.Context, cfg *config.Config) (flash.Store, error) {
	if cfg.FlashStore != config.FlashRedis {
		return flash.CookieStore{Secure: cfg.IsProduction()}, nil
	}
	redisStore := flash.RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		TTL:    cfg.FlashTTL,
		Secure: cfg.IsProduction(),
	}
	if err := redisStore.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return redisStore, nil
}
