package crm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	emailListLimit    = 200
	activityFeedLimit = 20
	activityListLimit = 100
)

var (
	// ErrTaskNotFound indicates the requested task does not exist in the organization.
	ErrTaskNotFound = errors.New("crm: task not found")
	// ErrMissingTitle indicates a task create request without a title.
	ErrMissingTitle = errors.New("crm: task title required")
	// ErrMissingName indicates a deal create request without a name.
	ErrMissingName = errors.New("crm: deal name required")

	errMissingDatabase = errors.New("crm: database connection required")
)

// ServiceConfig describes the dependencies for the CRM view service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service backs the dashboard, tasks, calendar, and email views.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the CRM view service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// ListTasks returns the organization's tasks ordered by due date, optionally
// filtered by status.
func (s *Service) ListTasks(ctx context.Context, orgID, status string) ([]Task, error) {
	query := s.db.WithContext(ctx).Where("org_id = ?", orgID).Order("due ASC")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTaskParams carries the fields of a locally created task.
type CreateTaskParams struct {
	Title            string
	Notes            string
	Due              string
	LinkedEntityType string
	LinkedEntityID   string
}

// CreateTask inserts a CRM task with a generated id and needsAction status.
func (s *Service) CreateTask(ctx context.Context, orgID string, params CreateTaskParams) (Task, error) {
	if strings.TrimSpace(params.Title) == "" {
		return Task{}, ErrMissingTitle
	}

	task := Task{
		OrgID:            orgID,
		ID:               uuid.NewString(),
		Title:            strings.TrimSpace(params.Title),
		Notes:            params.Notes,
		Due:              params.Due,
		Status:           TaskStatusNeedsAction,
		LinkedEntityType: params.LinkedEntityType,
		LinkedEntityID:   params.LinkedEntityID,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return Task{}, err
	}
	return task, nil
}

// ToggleTask flips a task between needsAction and completed, stamping or
// clearing the completion time. This is the UI checkbox path and runs
// independently of any sync.
func (s *Service) ToggleTask(ctx context.Context, orgID, taskID string) (Task, error) {
	var task Task
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, taskID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, err
	}

	if task.Status == TaskStatusCompleted {
		task.Status = TaskStatusNeedsAction
		task.CompletedAt = ""
	} else {
		task.Status = TaskStatusCompleted
		task.CompletedAt = s.now().UTC().Format(time.RFC3339)
	}

	err = s.db.WithContext(ctx).
		Model(&Task{}).
		Where("org_id = ? AND id = ?", orgID, taskID).
		Updates(map[string]interface{}{
			"status":       task.Status,
			"completed_at": task.CompletedAt,
		}).Error
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

// ListCalendarEvents returns the organization's synced events, soonest first.
func (s *Service) ListCalendarEvents(ctx context.Context, orgID string) ([]CalendarEvent, error) {
	var events []CalendarEvent
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("start_at ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListEmails returns the organization's synced messages, newest first by the
// parsed Date header, capped. Messages with an unparsable header sort last.
func (s *Service) ListEmails(ctx context.Context, orgID string) ([]EmailMessage, error) {
	var emails []EmailMessage
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("received_at DESC, updated_at DESC").
		Limit(emailListLimit).
		Find(&emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}

// RecordActivityParams carries a dashboard feed entry.
type RecordActivityParams struct {
	Type      string
	Action    string
	ActorName string
	Details   string
}

// RecordActivity appends an entry to the dashboard activity feed.
func (s *Service) RecordActivity(ctx context.Context, orgID string, params RecordActivityParams) (Activity, error) {
	activity := Activity{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Type:      params.Type,
		Action:    params.Action,
		ActorName: params.ActorName,
		Details:   params.Details,
		CreatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return Activity{}, err
	}
	return activity, nil
}

// ListDeals returns the organization's pipeline, most recently touched first.
func (s *Service) ListDeals(ctx context.Context, orgID string) ([]Deal, error) {
	var deals []Deal
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("updated_at DESC").
		Find(&deals).Error
	if err != nil {
		return nil, err
	}
	return deals, nil
}

// CreateDealParams carries the fields of a new pipeline entry.
type CreateDealParams struct {
	Name   string
	Stage  string
	Amount int64
}

// CreateDeal inserts a pipeline entry with a generated id.
func (s *Service) CreateDeal(ctx context.Context, orgID string, params CreateDealParams) (Deal, error) {
	if strings.TrimSpace(params.Name) == "" {
		return Deal{}, ErrMissingName
	}
	stage := strings.TrimSpace(params.Stage)
	if stage == "" {
		stage = DealStageLead
	}

	deal := Deal{
		ID:     uuid.NewString(),
		OrgID:  orgID,
		Name:   strings.TrimSpace(params.Name),
		Stage:  stage,
		Amount: params.Amount,
	}
	if err := s.db.WithContext(ctx).Create(&deal).Error; err != nil {
		return Deal{}, err
	}
	return deal, nil
}

// ListActivities returns the organization's activity feed, newest first,
// capped.
func (s *Service) ListActivities(ctx context.Context, orgID string) ([]Activity, error) {
	var activities []Activity
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(activityListLimit).
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// DealStageCount is one bar of the dashboard pipeline chart.
type DealStageCount struct {
	Stage string `json:"stage"`
	Count int64  `json:"count"`
}

// DashboardOverview aggregates the numbers the dashboard cards display.
type DashboardOverview struct {
	DealsByStage     []DealStageCount `json:"dealsByStage"`
	RecentActivities []Activity       `json:"recentActivities"`
	OpenTasks        int64            `json:"openTasks"`
	CompletedTasks   int64            `json:"completedTasks"`
	UpcomingEvents   int64            `json:"upcomingEvents"`
}

// DashboardOverview computes the aggregate counts for the dashboard.
func (s *Service) DashboardOverview(ctx context.Context, orgID string) (DashboardOverview, error) {
	var overview DashboardOverview

	err := s.db.WithContext(ctx).
		Model(&Deal{}).
		Select("stage, COUNT(*) AS count").
		Where("org_id = ?", orgID).
		Group("stage").
		Order("count DESC").
		Scan(&overview.DealsByStage).Error
	if err != nil {
		return DashboardOverview{}, err
	}

	err = s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(activityFeedLimit).
		Find(&overview.RecentActivities).Error
	if err != nil {
		return DashboardOverview{}, err
	}

	counts := map[string]*int64{
		TaskStatusNeedsAction: &overview.OpenTasks,
		TaskStatusCompleted:   &overview.CompletedTasks,
	}
	for status, target := range counts {
		err = s.db.WithContext(ctx).
			Model(&Task{}).
			Where("org_id = ? AND status = ?", orgID, status).
			Count(target).Error
		if err != nil {
			return DashboardOverview{}, err
		}
	}

	nowISO := s.now().UTC().Format(time.RFC3339)
	err = s.db.WithContext(ctx).
		Model(&CalendarEvent{}).
		Where("org_id = ? AND start_at >= ?", orgID, nowISO).
		Count(&overview.UpcomingEvents).Error
	if err != nil {
		return DashboardOverview{}, err
	}

	return overview, nil
}
