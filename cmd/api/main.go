// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/njugunanduati/medicine-dose-tracker/internal/cache"
	"github.com/njugunanduati/medicine-dose-tracker/internal/config"
	"github.com/njugunanduati/medicine-dose-tracker/internal/db"
	"github.com/njugunanduati/medicine-dose-tracker/internal/db/migrations"
	"github.com/njugunanduati/medicine-dose-tracker/internal/logging"
	"github.com/njugunanduati/medicine-dose-tracker/internal/mailqueue"
	"github.com/njugunanduati/medicine-dose-tracker/internal/repository"
	"github.com/njugunanduati/medicine-dose-tracker/internal/routes"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
	"github.com/njugunanduati/medicine-dose-tracker/internal/session"
	"github.com/njugunanduati/medicine-dose-tracker/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create database if it doesn't exist
	if cfg.AutoCreateDB {
		if err := db.CreateDatabaseIfNotExists(ctx, cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("ensure database exists: %w", err)
		}
	}

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := migrations.RunMigrations(ctx, database.DB.DB); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	sender, closeSender, err := newEmailSender(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()

	hasher, err := services.NewPasswordHasher(cfg.PasswordHashAlgo, cfg.BcryptCost)
	if err != nil {
		return err
	}
	store := services.NewCredentialStore(repository.NewUserRepository(database.DB), hasher)
	codec := services.NewResetTokenCodec(cfg.SecretKey, cfg.ResetTokenTTL)
	mailer := services.NewResetMailer(sender, cfg.BaseURL, cfg.ResetTokenTTL)

	var usedTokens services.UsedTokenStore
	if cfg.ResetTokenSingleUse {
		usedTokens = cache.NewUsedTokenStore(redisClient)
	}
	auth := services.NewAuthService(store, codec, mailer, usedTokens, logger)

	sessions := session.NewManager(cache.NewSessionStore(redisClient), store, session.Options{
		CookieName:  cfg.SessionCookieName,
		TTL:         cfg.SessionTTL,
		RememberTTL: cfg.RememberTTL,
		Secure:      cfg.CookieSecure,
	})

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}

	router := routes.SetupRoutes(routes.Deps{
		Config:   cfg,
		Logger:   logger,
		DB:       database,
		Auth:     auth,
		Sessions: sessions,
		Renderer: renderer,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment, "mail_transport", cfg.MailTransport)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

// newEmailSender picks direct SMTP delivery or the AMQP outbox.
func newEmailSender(cfg *config.Config, logger *slog.Logger) (services.EmailSender, func(), error) {
	if cfg.MailTransport == config.MailTransportAMQP {
		conn, err := mailqueue.Dial(cfg.AMQP.URL, cfg.AMQP.MailQueue, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := conn.Close(); err != nil {
				logger.Warn("error closing RabbitMQ connection", "error", err)
			}
		}
		return conn.Publisher(), closeFn, nil
	}
	return newSMTPSender(cfg), func() {}, nil
}

func newSMTPSender(cfg *config.Config) *services.SMTPSender {
	return &services.SMTPSender{
		Host:   cfg.SMTP.Host,
		Port:   cfg.SMTP.Port,
		User:   cfg.SMTP.User,
		Pass:   cfg.SMTP.Password,
		From:   cfg.SMTP.From,
		UseTLS: cfg.SMTP.UseTLS,
	}
}
