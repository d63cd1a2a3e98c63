package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nexus-Agni/ShadowSpeak/internal/api"
	"github.com/Nexus-Agni/ShadowSpeak/internal/auth"
	"github.com/Nexus-Agni/ShadowSpeak/internal/config"
	"github.com/Nexus-Agni/ShadowSpeak/internal/db"
	"github.com/Nexus-Agni/ShadowSpeak/internal/events"
	"github.com/Nexus-Agni/ShadowSpeak/internal/logger"
	"github.com/Nexus-Agni/ShadowSpeak/internal/mail"
	"github.com/Nexus-Agni/ShadowSpeak/internal/metrics"
	"github.com/Nexus-Agni/ShadowSpeak/internal/middleware"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository/memory"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository/mongo"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository/postgres"
	"github.com/Nexus-Agni/ShadowSpeak/internal/services"
	"github.com/Nexus-Agni/ShadowSpeak/internal/telemetry"
	"github.com/Nexus-Agni/ShadowSpeak/internal/worker"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// openStore returns the users repository for cfg.Driver and its cleanup.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (repository.Users, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewUsers(), func() {}, nil

	case config.DriverMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		users, err := mongo.NewUsers(ctx, client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return users, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrations: %w", err)
			}
		}
		return postgres.NewRepositories(pool).Users, pool.Close, nil
	}
}

func newPublisher(cfg config.Config, log *slog.Logger) events.Publisher {
	if cfg.NATSURL == "" {
		return events.LogPublisher{Log: log}
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix)
	if err != nil {
		log.Warn("nats unavailable, events will only be logged", "err", err)
		return events.LogPublisher{Log: log}
	}
	return pub
}

func newMailer(cfg config.Config, log *slog.Logger) mail.Sender {
	if cfg.SMTPHost == "" {
		return mail.LogSender{Log: log}
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
		BaseURL:  cfg.PublicBaseURL,
	})
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	shutdownTracing, err := telemetry.Init(ctx, "shadowspeak", cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	users, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics.Init()
	wp := worker.NewPool(cfg.Workers)
	pub := newPublisher(cfg, log)
	// the pool drains before the publisher closes
	defer pub.Close()
	defer wp.Stop()
	dispatcher := events.NewDispatcher(pub, wp, log)

	accounts := services.NewAccountService(users, newMailer(cfg, log), dispatcher, services.AccountConfig{
		CodeTTL:          cfg.VerifyCodeTTL,
		CodeLength:       cfg.VerifyCodeLength,
		DefaultAccepting: cfg.DefaultAccepting,
	}, log)
	messages := services.NewMessageService(users, dispatcher, log)

	sessions := middleware.NewSessions(
		auth.NewSessionManager(auth.SessionConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.SessionTTL}),
		cfg.SessionCookie,
		cfg.CookieSecure,
	)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.RouterDeps{
			Cfg:      cfg,
			Accounts: accounts,
			Messages: messages,
			Sessions: sessions,
			Log:      log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.HTTPAddr, "store", cfg.Driver, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
