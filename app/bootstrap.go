package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"portfolio-backend/internal/auth"
	"portfolio-backend/internal/config"
	"portfolio-backend/internal/contact"
	"portfolio-backend/internal/db"
	"portfolio-backend/internal/mail"
	"portfolio-backend/internal/maintenance"
	"portfolio-backend/internal/media"
	"portfolio-backend/internal/observability"
	"portfolio-backend/internal/project"
	"portfolio-backend/internal/resume"
	"portfolio-backend/internal/settings"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
	Release       string
}

type Runtime struct {
	Handler http.Handler
	Config  config.Config
	Logger  *observability.Logger
	DB      *sqlx.DB
	Auth    *auth.Service
	Close   func() error
}

// LoadConfig reads .env (when asked) and resolves the process configuration.
func LoadConfig(loadDotEnv bool) (config.Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}
	return config.Load()
}

func OpenDatabase(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	return db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	})
}

// Build loads configuration, connects to the database and assembles the HTTP
// handler. The returned Runtime owns the database connection.
func Build(ctx context.Context, options Options) (*Runtime, error) {
	cfg, err := LoadConfig(options.LoadDotEnv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env, options.Release); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := OpenDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if options.RunMigrations || cfg.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	runtime, err := New(ctx, cfg, database, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return runtime, nil
}

// New wires every component on top of an open database.
func New(ctx context.Context, cfg config.Config, database *sqlx.DB, logger *observability.Logger) (*Runtime, error) {
	tokens := auth.NewTokenIssuer(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	authService, err := auth.NewService(auth.NewRepository(database), tokens, cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	created, err := authService.BootstrapFromEnv(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info("admin_bootstrapped", map[string]any{"email": cfg.AdminEmail})
	}

	uploader, err := newUploader(cfg)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("init mail: %w", err)
	}

	contacts := contact.NewRepository(database)

	router := newRouter(cfg, routes{
		database: database,
		verifier: tokens,
		auth:     auth.NewHandler(authService, auth.NewCookiePolicy(cfg.Production, cfg.AccessTTL, cfg.RefreshTTL)),
		projects: project.NewHandler(project.NewRepository(database), uploader),
		contacts: contact.NewHandler(contacts, notifier, logger),
		resume:   resume.NewHandler(resume.NewRepository(database)),
		settings: settings.NewHandler(settings.NewRepository(database)),
		media:    media.NewUploadHandler(uploader),
		cleanup:  maintenance.NewCleanupHandler(contacts, logger, cfg.CronSecret, cfg.ContactRetention, cfg.MaintenanceBatchSize),
	})

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, router))

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Logger:  logger,
		DB:      database,
		Auth:    authService,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

// newUploader returns a nil uploader when Cloudinary is not configured.
func newUploader(cfg config.Config) (media.ImageUploader, error) {
	cloudinary, err := media.NewCloudinary(cfg.CloudinaryURL)
	if errors.Is(err, media.ErrNotConfigured) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cloudinary, nil
}

func newNotifier(cfg config.Config) (contact.Notifier, error) {
	if !cfg.Mail.Enabled() {
		return nil, nil
	}

	sender, err := mail.NewSender(cfg.Mail)
	if err != nil || sender == nil {
		return nil, err
	}
	return mail.NewContactNotifier(sender, cfg.Mail.From, cfg.Mail.NotifyTo), nil
}
