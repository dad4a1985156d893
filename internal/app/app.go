package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tenant-console/internal/api"
	"tenant-console/internal/config"
	"tenant-console/internal/crypto"
	"tenant-console/internal/database"
	"tenant-console/internal/logging"
	"tenant-console/internal/models"
	"tenant-console/internal/querycache"
	"tenant-console/internal/services/asana"
	"tenant-console/internal/services/comments"
	"tenant-console/internal/services/panels"
	"tenant-console/internal/services/scheduler"
)

// ErrNoTenant is returned when an operation needs a tenant and none is configured
var ErrNoTenant = errors.New("no tenant selected: set tenant_id or select a profile")

// App wires configuration, storage, the API client and the services
type App struct {
	cfg      *config.Config
	ctx      context.Context
	cancel   context.CancelFunc
	db       *gorm.DB
	keystore crypto.KeyStore
	log      *zap.Logger

	mu              sync.RWMutex
	client          *api.Client
	tenantID        string
	selectedProfile *models.ConsoleProfile
	vault           *crypto.Vault

	cache            *querycache.Cache
	poller           *asana.Poller
	panels           *panels.Manager
	sessions         *Sessions
	schedulerService *scheduler.Service
}

// Option configures an App
type Option func(*App)

// WithDB uses an already opened database
func WithDB(db *gorm.DB) Option {
	return func(a *App) { a.db = db }
}

// WithKeyStore replaces the OS keyring
func WithKeyStore(store crypto.KeyStore) Option {
	return func(a *App) { a.keystore = store }
}

// WithPoller replaces the poller built from configuration
func WithPoller(p *asana.Poller) Option {
	return func(a *App) { a.poller = p }
}

// New creates an App; call Startup before use
func New(cfg *config.Config, opts ...Option) *App {
	a := &App{
		cfg:      cfg,
		keystore: crypto.SystemKeyStore{},
		tenantID: cfg.TenantID,
		cache:    querycache.New(256),
		panels:   panels.NewManager(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Startup opens the database and builds the client and services
func (a *App) Startup(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.log = logging.Named("app")
	a.log.Info("Application starting up...")

	if a.db == nil {
		db, err := database.Open(a.cfg.Database, a.cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		a.db = db
	}

	a.client = newClient(a.cfg.API, a.cfg.API.BaseURL, a.cfg.API.Token)
	if a.poller == nil {
		a.poller = asana.NewPoller(asana.PollConfig{
			Interval:      a.cfg.Poll.Interval,
			RetryDelay:    a.cfg.Poll.RetryDelay,
			MaxRetryDelay: a.cfg.Poll.MaxRetryDelay,
			MaxRetries:    a.cfg.Poll.MaxRetries,
			Timeout:       a.cfg.Poll.Timeout,
		})
	}
	a.sessions = newSessions()
	a.schedulerService = scheduler.NewService(a.ctx, a.db, a)

	a.log.Info("Startup complete", zap.String("api", a.client.BaseURL()), zap.String("tenant_id", a.tenantID))
	return nil
}

// StartScheduler begins firing scheduled imports
func (a *App) StartScheduler() error {
	if err := a.schedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Shutdown closes sessions, stops the scheduler and closes the database
func (a *App) Shutdown() {
	if a.log == nil {
		return
	}
	a.log.Info("Application shutting down...")

	if a.sessions != nil {
		a.sessions.CloseAll()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.schedulerService != nil {
		a.schedulerService.Stop()
	}
	if err := database.Close(a.db); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}

	a.log.Info("Shutdown complete")
	logging.Sync()
}

func newClient(cfg config.APIConfig, baseURL, token string) *api.Client {
	opts := []api.Option{api.WithTimeout(cfg.Timeout)}
	if cfg.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.RateLimit, cfg.Burst))
	}
	return api.NewClient(baseURL, token, opts...)
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config { return a.cfg }

// DB returns the local database
func (a *App) DB() *gorm.DB { return a.db }

// Client returns the current API client
func (a *App) Client() *api.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// Poller returns the shared run poller
func (a *App) Poller() *asana.Poller { return a.poller }

// Panels returns the modal lock manager
func (a *App) Panels() *panels.Manager { return a.panels }

// Sessions returns the wizard session registry
func (a *App) Sessions() *Sessions { return a.sessions }

// Scheduler returns the scheduled import service
func (a *App) Scheduler() *scheduler.Service { return a.schedulerService }

// TenantID returns the active tenant
func (a *App) TenantID() (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tenantID == "" {
		return "", ErrNoTenant
	}
	return a.tenantID, nil
}

// Connector returns the Asana connector of a tenant
func (a *App) Connector(tenantID string) asana.Connector {
	return asana.NewAPIConnector(a.Client(), tenantID)
}

// Recorder returns the run recorder of a tenant
func (a *App) Recorder(tenantID string) *asana.RunRecorder {
	return asana.NewRunRecorder(a.db, tenantID)
}

// Comments returns the comment service over the shared cache
func (a *App) Comments() *comments.Service {
	return comments.NewService(a.Client(), a.cache)
}

// NewWizard opens a wizard session for the active tenant
func (a *App) NewWizard() (*asana.Session, error) {
	tenantID, err := a.TenantID()
	if err != nil {
		return nil, err
	}
	s := asana.NewSession(a.Connector(tenantID), a.poller, asana.WithRunSink(a.Recorder(tenantID)))
	a.sessions.Add(s)
	return s, nil
}

// RunImport runs one headless import; scheduled jobs call it
func (a *App) RunImport(ctx context.Context, tenantID string, req asana.ImportRequest) (*asana.ImportRun, error) {
	result, err := a.Import(ctx, tenantID, req, models.OriginSchedule, nil)
	if err != nil {
		return nil, err
	}
	return result.Run, nil
}

// Import validates, executes and polls req to completion, recording the
// terminal run with origin
func (a *App) Import(ctx context.Context, tenantID string, req asana.ImportRequest, origin string, onUpdate func(*asana.ImportRun)) (*asana.PipelineResult, error) {
	pipeline := asana.NewPipeline(a.Connector(tenantID), a.poller, a.Recorder(tenantID))
	return pipeline.Run(ctx, req, origin, onUpdate)
}

// ====================================================================================
// Profile management
// ====================================================================================

// ProfileRequest creates or updates a console profile
type ProfileRequest struct {
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	TenantID string `json:"tenant_id"`
	Token    string `json:"token"`
}

func (a *App) loadVault() (*crypto.Vault, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.vault != nil {
		return a.vault, nil
	}
	v, err := crypto.LoadVault(a.keystore)
	if err != nil {
		return nil, err
	}
	a.vault = v
	return v, nil
}

// ListProfiles returns all saved profiles
func (a *App) ListProfiles() ([]models.ConsoleProfile, error) {
	var profiles []models.ConsoleProfile
	if err := a.db.Order("name").Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile looks a profile up by id or name
func (a *App) GetProfile(idOrName string) (*models.ConsoleProfile, error) {
	var profile models.ConsoleProfile
	if err := a.db.Where("id = ? OR name = ?", idOrName, idOrName).First(&profile).Error; err != nil {
		return nil, fmt.Errorf("profile %q not found: %w", idOrName, err)
	}
	return &profile, nil
}

// CreateProfile saves a profile with its token sealed
func (a *App) CreateProfile(req ProfileRequest) (*models.ConsoleProfile, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.BaseURL) == "" || strings.TrimSpace(req.TenantID) == "" {
		return nil, errors.New("name, base_url and tenant_id are required")
	}
	if req.Token == "" {
		return nil, errors.New("token is required")
	}

	vault, err := a.loadVault()
	if err != nil {
		return nil, fmt.Errorf("encryption not available, cannot save profiles: %w", err)
	}
	sealed, err := vault.Seal(req.Token)
	if err != nil {
		return nil, err
	}

	profile := &models.ConsoleProfile{
		Name:     req.Name,
		BaseURL:  req.BaseURL,
		TenantID: req.TenantID,
		TokenEnc: sealed,
	}
	if err := a.db.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile changes a profile; an empty token keeps the stored one
func (a *App) UpdateProfile(idOrName string, req ProfileRequest) (*models.ConsoleProfile, error) {
	profile, err := a.GetProfile(idOrName)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.BaseURL != "" {
		profile.BaseURL = req.BaseURL
	}
	if req.TenantID != "" {
		profile.TenantID = req.TenantID
	}
	if req.Token != "" {
		vault, err := a.loadVault()
		if err != nil {
			return nil, err
		}
		if profile.TokenEnc, err = vault.Seal(req.Token); err != nil {
			return nil, err
		}
	}

	if err := a.db.Save(profile).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

// DeleteProfile removes a profile
func (a *App) DeleteProfile(idOrName string) error {
	profile, err := a.GetProfile(idOrName)
	if err != nil {
		return err
	}
	return a.db.Delete(profile).Error
}

// SelectProfile points the client and tenant at a saved profile
func (a *App) SelectProfile(idOrName string) error {
	profile, err := a.GetProfile(idOrName)
	if err != nil {
		return err
	}
	vault, err := a.loadVault()
	if err != nil {
		return err
	}
	token, err := vault.Open(profile.TokenEnc)
	if err != nil {
		return fmt.Errorf("failed to decrypt token for %s: %w", profile.Name, err)
	}

	client := newClient(a.cfg.API, profile.BaseURL, token)

	a.mu.Lock()
	a.client = client
	a.tenantID = profile.TenantID
	a.selectedProfile = profile
	a.mu.Unlock()

	// cached reads belong to the previous deployment
	a.cache.Clear()

	a.log.Info("Selected profile", zap.String("name", profile.Name), zap.String("tenant_id", profile.TenantID))
	return nil
}

// SelectedProfile returns the active profile, or nil when running from config
func (a *App) SelectedProfile() *models.ConsoleProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selectedProfile
}
