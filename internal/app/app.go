// Package app boots the HTTP server and wires its dependencies.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/inkawebai/inkaweb-backend/internal/config"
	"github.com/inkawebai/inkaweb-backend/internal/db"
	"github.com/inkawebai/inkaweb-backend/internal/http/api"
	"github.com/inkawebai/inkaweb-backend/internal/llm"
	"github.com/inkawebai/inkaweb-backend/internal/mail"
	"github.com/inkawebai/inkaweb-backend/internal/payments"
	"github.com/inkawebai/inkaweb-backend/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// Migrate resolves the database DSN, opens the database, and runs
// migrations.
func Migrate(cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		return errDSN
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer starts the API server and blocks until ctx is cancelled or the
// listener fails.
func RunServer(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	var mailer mail.Sender
	if cfg.Mail.APIToken != "" {
		client, errMail := mail.New(mail.Config{
			APIToken:  cfg.Mail.APIToken,
			BaseURL:   cfg.Mail.BaseURL,
			FromEmail: cfg.Mail.FromEmail,
			FromName:  cfg.Mail.FromName,
		})
		if errMail != nil {
			return errMail
		}
		mailer = client
	} else {
		log.Warn("mail api token not set, outbound email disabled")
		mailer = mail.NopSender{}
	}

	llmClient := llm.New(llm.Config{
		APIKey:     cfg.OpenRouter.APIKey,
		BaseURL:    cfg.OpenRouter.BaseURL,
		Model:      cfg.OpenRouter.Model,
		MaxRetries: cfg.OpenRouter.MaxRetries,
		Timeout:    cfg.OpenRouter.Timeout,
	})
	if cfg.OpenRouter.APIKey == "" {
		log.Warn("openrouter api key not set, chat completions will fail")
	}

	paymentsService := payments.New(payments.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		ClientURL:     cfg.ClientURL,
	})

	limiter := ratelimit.NewManager(cfg.RateLimit.RequestsPerSecond, ratelimit.RedisSettings{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	}, nil, nil)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.ClientURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api.RegisterRoutes(engine, api.Deps{
		DB:       conn,
		Config:   cfg,
		Mailer:   mailer,
		LLM:      llmClient,
		Payments: paymentsService,
		Limiter:  limiter,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return errShutdown
	}
	return nil
}
