// Package wire provides dependency injection for the triage application.
// It builds every service from configuration exactly once per process.
package wire

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/triage/internal/adapters/notify"
	promadapter "github.com/example/triage/internal/adapters/prometheus"
	"github.com/example/triage/internal/adapters/sqlite"
	"github.com/example/triage/internal/app"
	"github.com/example/triage/internal/config"
	"github.com/example/triage/internal/core/directory"
	"github.com/example/triage/internal/core/patterns"
	"github.com/example/triage/internal/db"
	"github.com/example/triage/internal/ports/primary"
	"github.com/example/triage/internal/ports/secondary"
)

// Container holds the wired services. Build it with New; release it with Close.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	DB          *sql.DB
	Audit       secondary.AuditRepository
	Profiles    secondary.ProfileRepository
	Notifier    *notify.MultiNotifier
	Triage      primary.TriageService
	Contacts    primary.ContactService
	Escalations *app.EscalationServiceImpl
	Sweeper     *app.Sweeper
	Exporter    *promadapter.Exporter

	redis *notify.RedisNotifier
}

// New opens the database, loads the pattern library and contact directory,
// connects the optional redis notifier and builds the services.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	if log == nil {
		log = zap.NewNop()
	}
	notifyTier, err := cfg.NotifyTier()
	if err != nil {
		return nil, err
	}

	lib := patterns.Default()
	if cfg.Patterns.File != "" {
		if lib, err = patterns.LoadFile(cfg.Patterns.File); err != nil {
			return nil, fmt.Errorf("failed to load pattern library: %w", err)
		}
	}
	dir := directory.Default()
	if cfg.Contacts.File != "" {
		if dir, err = directory.LoadFile(cfg.Contacts.File); err != nil {
			return nil, fmt.Errorf("failed to load contact directory: %w", err)
		}
	}

	database, err := db.Open(cfg.DB.Path, log)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: log, DB: database}

	notifiers := []secondary.Notifier{notify.NewLogNotifier(log)}
	if cfg.Redis.Addr != "" {
		rn, err := notify.NewRedisNotifier(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			database.Close()
			return nil, err
		}
		c.redis = rn
		notifiers = append(notifiers, rn)
	}
	c.Notifier = notify.NewMultiNotifier(notifiers...)

	// Repositories (secondary ports) share the one connection.
	escalationRepo := sqlite.NewEscalationRepository(database)
	auditRepo := sqlite.NewAuditRepository(database)
	profileRepo := sqlite.NewProfileRepository(database)
	c.Audit = auditRepo
	c.Profiles = profileRepo

	// Services (primary ports)
	contacts := app.NewContactService(dir, log)
	c.Contacts = contacts
	c.Triage = app.NewTriageService(lib, profileRepo, log)
	c.Escalations = app.NewEscalationService(app.EscalationConfig{
		Thresholds:    cfg.Escalation.Thresholds,
		NotifyTier:    notifyTier,
		NotifyTimeout: cfg.Escalation.NotifyTimeout,
	}, app.EscalationDeps{
		Repo:      escalationRepo,
		LogWriter: sqlite.NewLogWriterAdapter(auditRepo),
		Notifier:  c.Notifier,
		Contacts:  contacts,
		Logger:    log,
	})
	c.Sweeper = app.NewSweeper(c.Escalations, app.SweeperConfig{
		Interval:          cfg.Sweep.Interval,
		SLA:               cfg.Sweep.SLA.SLA(),
		RenotifyPerMinute: cfg.Sweep.RenotifyPerMinute,
	})
	c.Exporter = promadapter.NewExporter(promadapter.DefaultNamespace, c.Escalations)

	return c, nil
}

// Close waits for in-flight notifications, then releases redis and the database.
func (c *Container) Close() error {
	c.Escalations.Wait()
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis notifier", zap.Error(err))
		}
	}
	_ = c.Logger.Sync()
	return c.DB.Close()
}

var (
	mu        sync.Mutex
	container *Container
)

// Default returns the process-wide container, building it on first use.
// Later calls ignore their arguments.
func Default(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	mu.Lock()
	defer mu.Unlock()
	if container != nil {
		return container, nil
	}
	c, err := New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	container = c
	return container, nil
}

// Shutdown closes the process-wide container if one was built.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if container == nil {
		return nil
	}
	err := container.Close()
	container = nil
	return err
}
