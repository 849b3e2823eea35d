package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/missuo/flux-panel/internal/api"
	"github.com/missuo/flux-panel/internal/config"
	"github.com/missuo/flux-panel/internal/diag"
	"github.com/missuo/flux-panel/internal/lifecycle"
	"github.com/missuo/flux-panel/internal/model"
	storemodel "github.com/missuo/flux-panel/internal/store/model"
	"github.com/missuo/flux-panel/internal/store/repo"
)

// ErrNoSession is returned by operations that need a token when none is
// configured or saved.
var ErrNoSession = errors.New("not logged in")

type App struct {
	cfg      config.Config
	repo     *repo.Repository
	logger   *log.Logger
	warnings *diag.Counter
	reporter diag.Reporter
	now      func() time.Time

	clientMu sync.RWMutex
	client   *api.Client

	jobsMu      sync.Mutex
	jobsStarted bool
	jobsCancel  context.CancelFunc
	jobsWG      sync.WaitGroup
}

type Option func(*App)

func WithLogger(l *log.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		if now != nil {
			a.now = now
		}
	}
}

func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var (
		r   *repo.Repository
		err error
	)
	switch cfg.DBType {
	case config.DBTypeSQLite:
		r, err = repo.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
	case config.DBTypePostgres:
		r, err = repo.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported FLUX_DB_TYPE %q", cfg.DBType)
	}

	a := &App{
		cfg:      cfg,
		repo:     r,
		logger:   log.New(os.Stderr, "flux: ", log.LstdFlags),
		warnings: &diag.Counter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.reporter = diag.Multi{a.warnings, diag.LogReporter{Logger: a.logger}}

	token := cfg.Token
	if token == "" {
		if token, err = r.AuthToken(); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("load saved token: %w", err)
		}
	}
	if err := r.SaveServerURL(cfg.ServerURL); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("save server url: %w", err)
	}
	a.client = api.New(cfg.ServerURL,
		api.WithToken(token),
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithReporter(a.reporter),
	)
	return a, nil
}

// Client returns the panel client for the current session.
func (a *App) Client() *api.Client {
	a.clientMu.RLock()
	defer a.clientMu.RUnlock()
	return a.client
}

func (a *App) Repository() *repo.Repository { return a.repo }

// Warnings counts the data-quality warnings seen so far.
func (a *App) Warnings() *diag.Counter { return a.warnings }

func (a *App) Logger() *log.Logger { return a.logger }

// Login authenticates and saves the token for later runs.
func (a *App) Login(ctx context.Context, username, password, captchaID string) (api.Session, error) {
	s, err := a.Client().Login(ctx, username, password, captchaID)
	if err != nil {
		return api.Session{}, err
	}
	if err := a.repo.SaveAuthToken(s.Token); err != nil {
		return api.Session{}, fmt.Errorf("save token: %w", err)
	}
	a.clientMu.Lock()
	a.client = a.client.WithToken(s.Token)
	a.clientMu.Unlock()
	return s, nil
}

// Logout forgets the session and every cached value.
func (a *App) Logout() error {
	a.clientMu.Lock()
	a.client = a.client.WithToken("")
	a.clientMu.Unlock()
	return a.repo.Clear()
}

// Refresh fetches the dashboard and stores a widget snapshot of it. Rows
// the panel sent in an unusable shape are logged and skipped.
func (a *App) Refresh(ctx context.Context) (model.Dashboard, storemodel.WidgetSnapshot, error) {
	c := a.Client()
	if c.Token() == "" {
		return model.Dashboard{}, storemodel.WidgetSnapshot{}, ErrNoSession
	}
	d, err := c.Dashboard(ctx)
	if err != nil {
		var lerr *model.ListError
		if !errors.As(err, &lerr) {
			return model.Dashboard{}, storemodel.WidgetSnapshot{}, err
		}
		a.logger.Printf("dashboard: %v", err)
	}

	now := a.now()
	snap, err := a.repo.SaveSnapshot(SnapshotOf(d.Account, a.cfg.ServerURL), now)
	if err != nil {
		return d, storemodel.WidgetSnapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	return d, snap, nil
}

// SnapshotOf condenses an account into what the widget shows.
func SnapshotOf(acct model.AccountQuota, serverURL string) storemodel.WidgetSnapshot {
	return storemodel.WidgetSnapshot{
		TotalFlowGB:   acct.FlowQuotaGB,
		UsedFlowBytes: acct.Usage().Used(),
		ExpTime:       acct.ExpiresAt,
		ServerURL:     serverURL,
	}
}

// Classifier returns the expiry classifier configured for this app.
func (a *App) Classifier(entity string) lifecycle.Classifier {
	return lifecycle.Classifier{
		SoonThreshold: a.cfg.ExpiryWarnDays,
		Reporter:      a.reporter,
		Entity:        entity,
		Field:         "expTime",
	}
}

// Run starts the background jobs and blocks until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if _, _, err := a.Refresh(ctx); err != nil {
		if errors.Is(err, api.ErrUnauthorized) || errors.Is(err, ErrNoSession) {
			return err
		}
		a.logger.Printf("initial refresh: %v", err)
	}
	a.StartBackgroundJobs(ctx)
	<-ctx.Done()
	a.StopBackgroundJobs()
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.StopBackgroundJobs()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.repo.Close()
}
