// Package app wires settings, configuration, storage, clients and services
// into one process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-co-op/gocron/v2"
	"github.com/hongjs/code-tanuki/internal/config"
	"github.com/hongjs/code-tanuki/internal/github"
	"github.com/hongjs/code-tanuki/internal/handler"
	"github.com/hongjs/code-tanuki/internal/jira"
	"github.com/hongjs/code-tanuki/internal/logging"
	"github.com/hongjs/code-tanuki/internal/provider"
	"github.com/hongjs/code-tanuki/internal/retry"
	"github.com/hongjs/code-tanuki/internal/review"
	"github.com/hongjs/code-tanuki/internal/security"
	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/hongjs/code-tanuki/internal/settings"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type Options struct {
	// DotEnvPath is read before settings; a missing file is not an error.
	DotEnvPath string
	ConfigFile string
	Flags      *pflag.FlagSet
	// Logger replaces the configured logger, mainly for tests.
	Logger *zap.Logger
}

// App holds every long-lived dependency of the process.
type App struct {
	Settings *settings.AppSettings
	Config   *config.Config
	Logger   *zap.Logger

	rdb  *sql.DB
	rwdb *sql.DB

	Runs      *store.RunSQLStore
	Artifacts *store.ArtifactFileStore
	Ignore    *github.IgnoreList
	GitHub    *github.Client
	// Jira is nil when its credentials are missing.
	Jira    service.IssueTracker
	Catalog *provider.Catalog
	Router  *provider.Router

	Reviews   *service.ReviewService
	History   *service.HistoryService
	Retention *service.RetentionService
}

// New loads settings and configuration, opens and migrates the database
// and builds the clients and services.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.DotEnvPath != "" {
		if err := settings.ReadDotenv(opts.DotEnvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	s := settings.NewSettings()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.ConfigFile, opts.Flags)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		if logger, err = logging.New(cfg.Log.Level, cfg.Log.Format); err != nil {
			return nil, err
		}
	}

	a := &App{Settings: s, Config: cfg, Logger: logger}
	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildClients(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildServices(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore() error {
	driver := store.Driver(a.Settings.DBDriver)
	if driver == store.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(a.Settings.DBPath), 0o750); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	// the read-write pool goes first so sqlite creates the file before the
	// read-only pool opens it
	var err error
	if a.rwdb, err = store.OpenDatabase(driver, a.Settings.DSN(false), false); err != nil {
		return err
	}
	if err := store.RunMigrations(a.rwdb, driver); err != nil {
		return err
	}
	if a.rdb, err = store.OpenDatabase(driver, a.Settings.DSN(true), true); err != nil {
		return err
	}
	a.Runs = store.NewRunSQLStore(a.rdb, a.rwdb)

	var enc security.Encrypter
	if a.Settings.ArtifactKey != "" {
		aes, err := security.NewAESEncrypter([]byte(a.Settings.ArtifactKey))
		if err != nil {
			return err
		}
		enc = aes
	}
	a.Artifacts = store.NewArtifactFileStore(a.Settings.ArtifactDir(), enc, a.Logger)
	return nil
}

func (a *App) buildClients(ctx context.Context) error {
	exec := retry.NewExecutor(a.Logger)
	policy := a.Config.Retry.Policy()

	var err error
	if a.Ignore, err = github.NewIgnoreList(a.Config.GitHub.IgnoreFile, a.Logger); err != nil {
		return err
	}
	a.GitHub, err = github.NewClient(a.Settings.GitHubToken, exec, github.Options{
		BaseURL: a.Config.GitHub.BaseURL,
		Policy:  policy,
		Ignore:  a.Ignore,
		Logger:  a.Logger,
	})
	if err != nil {
		return err
	}
	if a.Settings.GitHubToken == "" {
		a.Logger.Warn("GITHUB_TOKEN is not set, publishing reviews will fail")
	}

	if a.Settings.JiraConfigured() {
		jc, err := jira.NewClient(jira.Config{
			BaseURL:  a.Settings.JiraBaseURL,
			Email:    a.Settings.JiraEmail,
			APIToken: a.Settings.JiraAPIToken,
		}, exec, jira.Options{Policy: policy, Logger: a.Logger})
		if err != nil {
			return err
		}
		a.Jira = jc
	}

	if a.Catalog, err = provider.LoadCatalog(a.Config.Model.CatalogFile); err != nil {
		return err
	}
	popts := provider.Options{
		HTTPClient:       &http.Client{Timeout: a.Config.Model.Timeout},
		Temperature:      a.Config.Model.Temperature,
		DefaultMaxTokens: a.Config.Model.DefaultMaxTokens,
		Policy:           policy,
		Logger:           a.Logger,
	}
	reviewers := map[provider.Vendor]provider.Reviewer{}
	if a.Settings.AnthropicAPIKey != "" {
		if p, err := provider.NewAnthropic(a.Settings.AnthropicAPIKey, exec, popts); err != nil {
			a.Logger.Warn("claude provider disabled", zap.Error(err))
		} else {
			reviewers[provider.VendorClaude] = p
		}
	}
	if a.Settings.GeminiAPIKey != "" {
		if p, err := provider.NewGemini(ctx, a.Settings.GeminiAPIKey, exec, popts); err != nil {
			a.Logger.Warn("gemini provider disabled", zap.Error(err))
		} else {
			reviewers[provider.VendorGemini] = p
		}
	}
	a.Router = provider.NewRouter(a.Catalog, reviewers)
	return nil
}

func (a *App) buildServices() error {
	tickets, err := review.NewTicketExtractor(a.Config.Ticket.KeyPattern)
	if err != nil {
		return err
	}
	a.Reviews = service.NewReviewService(a.GitHub, a.Jira, a.Router, a.Runs, a.Artifacts, service.ReviewOptions{
		Tickets:         tickets,
		DuplicateWindow: a.Config.Review.DuplicateWindow,
		DropOutOfDiff:   a.Config.Review.DropOutOfDiffComments,
		Logger:          a.Logger,
	})
	a.History = service.NewHistoryService(a.Runs, a.Artifacts, a.Logger)
	a.Retention = service.NewRetentionService(a.Runs, a.Artifacts, a.Config.Retention.MaxAge, a.Logger)
	return nil
}

// Integrations reports which credentials are present.
func (a *App) Integrations() handler.Integrations {
	return handler.Integrations{
		HasJiraConfig:   a.Settings.JiraConfigured(),
		HasAnthropicKey: a.Settings.AnthropicAPIKey != "",
		HasGeminiKey:    a.Settings.GeminiAPIKey != "",
		HasGitHubToken:  a.Settings.GitHubToken != "",
	}
}

// NewServer builds the echo server with every API route.
func (a *App) NewServer() *echo.Echo {
	e, api := handler.NewEcho(handler.ServerConfig{
		AllowOrigins:   a.Config.Server.AllowOrigins,
		RateLimit:      a.Config.Server.RateLimit,
		RateBurst:      a.Config.Server.RateBurst,
		BodyLimit:      a.Config.Server.BodyLimit,
		RequestTimeout: a.Config.Server.RequestTimeout,
	}, a.Logger)

	handler.SetupReviewRoutes(api, a.Reviews)
	handler.SetupHistoryRoutes(api, a.History)
	handler.SetupIntegrationRoutes(api, a.GitHub, a.Jira)
	handler.SetupSystemRoutes(api, a.History, a.Catalog, a.Integrations(), a.Logger)
	return e
}

// NewScheduler returns a scheduler with the retention job registered. The
// caller starts and shuts it down.
func (a *App) NewScheduler() (gocron.Scheduler, error) {
	scheduler, err := service.NewScheduler(a.Logger)
	if err != nil {
		return nil, err
	}
	if err := a.Retention.Schedule(scheduler, a.Config.Retention.Schedule); err != nil {
		_ = scheduler.Shutdown()
		return nil, err
	}
	return scheduler, nil
}

// Close releases the database pools and flushes the logger.
func (a *App) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.rwdb != nil {
		_ = a.rwdb.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}
