// cmd/worker/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/njugunanduati/medicine-dose-tracker/internal/config"
	"github.com/njugunanduati/medicine-dose-tracker/internal/logging"
	"github.com/njugunanduati/medicine-dose-tracker/internal/mailqueue"
	"github.com/njugunanduati/medicine-dose-tracker/internal/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("process", "mail-worker")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := mailqueue.Dial(cfg.AMQP.URL, cfg.AMQP.MailQueue, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	smtp := &services.SMTPSender{
		Host:   cfg.SMTP.Host,
		Port:   cfg.SMTP.Port,
		User:   cfg.SMTP.User,
		Pass:   cfg.SMTP.Password,
		From:   cfg.SMTP.From,
		UseTLS: cfg.SMTP.UseTLS,
	}

	if err := conn.Consumer(smtp).Run(ctx); err != nil {
		return err
	}
	logger.Info("worker exiting")
	return nil
}
