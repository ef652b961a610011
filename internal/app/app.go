// Package app assembles the services and HTTP router shared by the server,
// Lambda, and CLI entry points.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/DukeRupert/hirelane/internal"
	"github.com/DukeRupert/hirelane/internal/auth"
	"github.com/DukeRupert/hirelane/internal/billing"
	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/email"
	"github.com/DukeRupert/hirelane/internal/middleware"
	"github.com/DukeRupert/hirelane/internal/repository"
	"github.com/DukeRupert/hirelane/internal/scoring"
	"github.com/DukeRupert/hirelane/internal/service"
	"github.com/DukeRupert/hirelane/internal/storage"
)

const scoringRetryBaseDelay = 500 * time.Millisecond

// App holds long-lived dependencies. Build it once per process.
type App struct {
	Config *internal.Config
	Logger *slog.Logger
	DB     *sql.DB
	Store  *repository.SQLStore

	Catalog    domain.PlanCatalog
	Background *service.Background
	Storage    storage.Storage

	Quota      service.QuotaService
	Reset      service.ResetJob
	Dispatcher service.AnalysisDispatcher
	Candidates service.CandidateService

	applyLimiter *middleware.RateLimiter
}

// OpenDB opens and pings the Postgres pool.
func OpenDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// New builds every service on top of db. It does not run migrations.
func New(cfg *internal.Config, db *sql.DB, logger *slog.Logger) (*App, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db)
	background := service.NewBackground(cfg.BackgroundTimeout, logger)

	emailService, err := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("email initialization failed: %w", err)
	}

	fileStorage, err := newStorage(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	workflow, err := newWorkflow(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("scoring initialization failed: %w", err)
	}

	notifier := service.NewUsageNotifier(store, emailService, background, logger)
	quota := service.NewQuotaService(store, catalog, notifier, logger)

	a := &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Store:      store,
		Catalog:    catalog,
		Background: background,
		Storage:    fileStorage,
		Quota:      quota,
		Reset:      service.NewResetJob(store, logger),
		Dispatcher: service.NewAnalysisDispatcher(store, quota, workflow, fileStorage, service.DispatcherConfig{
			CallbackURL: cfg.BaseURL + "/api/scoring/callback",
			CVURLTTL:    cfg.ScoringCVURLTTL,
		}, logger),
		Candidates: service.NewCandidateService(store, quota, fileStorage, emailService, background, service.CandidateConfig{
			AutoUnlock: cfg.AutoUnlockOnApply,
		}, logger),
	}
	return a, nil
}

// Handler builds the HTTP router. Call it at most once per App.
func (a *App) Handler() (http.Handler, error) {
	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   a.Config.JWTSecret,
		JWKSURL:  a.Config.JWTJWKSURL,
		Issuer:   a.Config.JWTIssuer,
		Audience: a.Config.JWTAudience,
	})
	if err != nil {
		return nil, fmt.Errorf("token verifier initialization failed: %w", err)
	}

	// A nil interface disables the Stripe webhook.
	var billingService billing.Service
	if a.Config.BillingEnabled() {
		billingService = billing.NewStripeService(a.Config.StripeSecretKey, a.Config.StripeWebhookSecret, a.Config.StripePrices)
	} else {
		a.Logger.Warn("stripe webhook secret not set, billing sync disabled")
	}

	a.applyLimiter = middleware.NewRateLimiter(a.Config.ApplyRateLimit, a.Config.ApplyRateWindow, a.Logger)

	var files http.Handler
	if local, ok := a.Storage.(*storage.LocalStorage); ok && a.Config.IsDevelopment() {
		files = http.FileServer(http.Dir(local.BasePath()))
	}

	return NewRouter(Deps{
		Config:       a.Config,
		Logger:       a.Logger,
		DB:           a.DB,
		Verifier:     verifier,
		Billing:      billingService,
		Quota:        a.Quota,
		Dispatcher:   a.Dispatcher,
		Reset:        a.Reset,
		Candidates:   a.Candidates,
		ApplyLimiter: a.applyLimiter,
		Files:        files,
	}), nil
}

// Close waits for background email and notification work, then releases
// the rate limiter and database pool.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Background.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("background tasks: %w", err))
	}
	if a.applyLimiter != nil {
		a.applyLimiter.Stop()
	}
	if err := a.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

func loadCatalog(cfg *internal.Config) (domain.PlanCatalog, error) {
	if cfg.PlanCatalogFile == "" {
		return domain.DefaultPlanCatalog(), nil
	}
	catalog, err := domain.LoadPlanCatalog(cfg.PlanCatalogFile)
	if err != nil {
		return nil, fmt.Errorf("plan catalog: %w", err)
	}
	return catalog, nil
}

func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.StorageProvider == "r2" {
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
	}
	return storage.NewLocalStorage(storage.LocalConfig{
		BasePath: cfg.LocalStoragePath,
		BaseURL:  cfg.LocalStorageURL,
	}, logger)
}

func newWorkflow(cfg *internal.Config, logger *slog.Logger) (scoring.Workflow, error) {
	if cfg.ScoringProvider != "webhook" {
		logger.Warn("using mock scoring workflow, candidates will not be scored")
		return scoring.NewMockWorkflow(logger), nil
	}
	return scoring.NewWebhookClient(scoring.Config{
		WebhookURL:     cfg.ScoringWebhookURL,
		Token:          cfg.ScoringWebhookToken,
		RequestTimeout: cfg.ScoringTimeout,
		MaxRetries:     uint64(cfg.ScoringMaxRetries),
		RetryBaseDelay: scoringRetryBaseDelay,
	}, logger)
}
