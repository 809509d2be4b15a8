// Package sync implements the three Google Workspace sync procedures. Each
// procedure is a one-shot pass: exchange the stored refresh token for an
// access token, fetch a bounded page of upstream data, parse it into typed
// records, upsert them in a single transaction keyed by external id, then
// stamp the integration record's last-sync time.
package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/groupmkl/synergize-api/internal/google"
	"github.com/groupmkl/synergize-api/internal/integrations"
)

const (
	calendarWindow     = 30 * 24 * time.Hour
	calendarMaxResults = 100
	mailMaxResults     = 50
)

var (
	errMissingDatabase = errors.New("sync: database connection required")
	errMissingTokens   = errors.New("sync: token provider required")
	errMissingOrgID    = errors.New("sync: organization id required")
)

// TokenProvider mints a short-lived access token for an organization.
// Implemented by integrations.Refresher.
type TokenProvider interface {
	AccessToken(ctx context.Context, orgID string) (string, error)
}

// CalendarFetcher lists upcoming calendar events. Implemented by google.CalendarClient.
type CalendarFetcher interface {
	ListUpcomingEvents(ctx context.Context, accessToken string, from time.Time, window time.Duration, maxResults int64) ([]google.EventRecord, error)
}

// MailFetcher lists and fetches Gmail messages. Implemented by google.GmailClient.
type MailFetcher interface {
	ListMessageIDs(ctx context.Context, accessToken string, maxResults int64) ([]string, error)
	GetMessage(ctx context.Context, accessToken, messageID string) (google.MessageRecord, error)
}

// TaskFetcher lists task lists and tasks. Implemented by google.TasksClient.
type TaskFetcher interface {
	ListTaskLists(ctx context.Context, accessToken string) ([]google.TaskListRecord, error)
	ListTasks(ctx context.Context, accessToken, listID string) ([]google.TaskRecord, error)
}

// Result reports one completed sync pass.
type Result struct {
	ItemsSynced int
	Message     string
}

// ServiceConfig describes the dependencies for the sync service.
type ServiceConfig struct {
	Database *gorm.DB
	Store    *integrations.Store
	Tokens   TokenProvider
	Calendar CalendarFetcher
	Mail     MailFetcher
	Tasks    TaskFetcher
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service runs the sync procedures.
type Service struct {
	db       *gorm.DB
	store    *integrations.Store
	tokens   TokenProvider
	calendar CalendarFetcher
	mail     MailFetcher
	tasks    TaskFetcher
	now      func() time.Time
	logger   *zap.Logger
	locks    *keyedMutex
}

// NewService constructs the sync service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Tokens == nil {
		return nil, errMissingTokens
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := cfg.Store
	if store == nil {
		store = integrations.NewStore(cfg.Database)
	}
	return &Service{
		db:       cfg.Database,
		store:    store,
		tokens:   cfg.Tokens,
		calendar: cfg.Calendar,
		mail:     cfg.Mail,
		tasks:    cfg.Tasks,
		now:      clock,
		logger:   logger,
		locks:    newKeyedMutex(),
	}, nil
}

// stampSynced records the pass completion time. Deliberately outside the
// batch transaction: a crash here leaves stale metadata, never partial data.
func (s *Service) stampSynced(ctx context.Context, orgID string) {
	if err := s.store.StampSynced(ctx, orgID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to stamp last sync time",
			zap.String("org_id", orgID),
			zap.Error(err))
	}
}
