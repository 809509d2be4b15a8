package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&CalendarEvent{}, &EmailMessage{}, &Task{}, &Activity{}, &Deal{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestCreateAndListTasksOrderedByDue(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for _, params := range []CreateTaskParams{
		{Title: "Prepare proposal for Innovate LLC", Due: "2026-03-05T10:00:00Z"},
		{Title: "Follow up with TechCorp", Due: "2026-03-02T10:00:00Z"},
	} {
		if _, err := service.CreateTask(ctx, "groupmkl", params); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	tasks, err := service.ListTasks(ctx, "groupmkl", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "Follow up with TechCorp" {
		t.Fatalf("expected due-date ordering, got %q first", tasks[0].Title)
	}
	if tasks[0].Status != TaskStatusNeedsAction {
		t.Fatalf("expected needsAction status, got %q", tasks[0].Status)
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.CreateTask(context.Background(), "groupmkl", CreateTaskParams{Title: "   "})
	if !errors.Is(err, ErrMissingTitle) {
		t.Fatalf("expected ErrMissingTitle, got %v", err)
	}
}

func TestToggleTaskFlipsStatusAndCompletion(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.CreateTask(ctx, "groupmkl", CreateTaskParams{Title: "Send invoice"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	toggled, err := service.ToggleTask(ctx, "groupmkl", created.ID)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if toggled.Status != TaskStatusCompleted {
		t.Fatalf("expected completed, got %q", toggled.Status)
	}
	if toggled.CompletedAt == "" {
		t.Fatal("expected completion timestamp to be set")
	}

	reverted, err := service.ToggleTask(ctx, "groupmkl", created.ID)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if reverted.Status != TaskStatusNeedsAction || reverted.CompletedAt != "" {
		t.Fatalf("expected reverted task, got %+v", reverted)
	}
}

func TestToggleTaskUnknownID(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.ToggleTask(context.Background(), "groupmkl", "missing")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestListTasksScopedToOrganization(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	if _, err := service.CreateTask(ctx, "groupmkl", CreateTaskParams{Title: "ours"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	other := Task{OrgID: "other-org", ID: "t-other", Title: "theirs", Status: TaskStatusNeedsAction}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	tasks, err := service.ListTasks(ctx, "groupmkl", "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "ours" {
		t.Fatalf("expected only this org's tasks, got %+v", tasks)
	}
}

func TestDashboardOverviewAggregates(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	deals := []Deal{
		{ID: "d1", OrgID: "groupmkl", Name: "Project Phoenix", Stage: "Negotiation"},
		{ID: "d2", OrgID: "groupmkl", Name: "Alpha Initiative", Stage: "Lead"},
		{ID: "d3", OrgID: "groupmkl", Name: "Beta Rollout", Stage: "Lead"},
	}
	for _, deal := range deals {
		if err := db.Create(&deal).Error; err != nil {
			t.Fatalf("seed deal failed: %v", err)
		}
	}

	if _, err := service.CreateTask(ctx, "groupmkl", CreateTaskParams{Title: "open task"}); err != nil {
		t.Fatalf("create task failed: %v", err)
	}
	if _, err := service.RecordActivity(ctx, "groupmkl", RecordActivityParams{
		Type:      ActivityTypeDeal,
		Action:    "updated a deal",
		ActorName: "Maria Garcia",
		Details:   "Project Phoenix to Negotiation stage",
	}); err != nil {
		t.Fatalf("record activity failed: %v", err)
	}

	event := CalendarEvent{OrgID: "groupmkl", GoogleEventID: "evt-1", Start: "2026-03-02T10:00:00Z"}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("seed event failed: %v", err)
	}

	overview, err := service.DashboardOverview(ctx, "groupmkl")
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if len(overview.DealsByStage) != 2 {
		t.Fatalf("expected 2 stages, got %+v", overview.DealsByStage)
	}
	if overview.DealsByStage[0].Stage != "Lead" || overview.DealsByStage[0].Count != 2 {
		t.Fatalf("expected Lead stage first with count 2, got %+v", overview.DealsByStage[0])
	}
	if overview.OpenTasks != 1 || overview.CompletedTasks != 0 {
		t.Fatalf("unexpected task counts: %+v", overview)
	}
	if overview.UpcomingEvents != 1 {
		t.Fatalf("expected 1 upcoming event, got %d", overview.UpcomingEvents)
	}
	if len(overview.RecentActivities) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(overview.RecentActivities))
	}
}

func TestCreateDealDefaultsStageToLead(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	deal, err := service.CreateDeal(ctx, "groupmkl", CreateDealParams{Name: "Meridian renewal", Amount: 1200000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if deal.Stage != DealStageLead {
		t.Fatalf("expected default stage, got %q", deal.Stage)
	}
	if deal.ID == "" {
		t.Fatal("expected a generated id")
	}

	deals, err := service.ListDeals(ctx, "groupmkl")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(deals) != 1 {
		t.Fatalf("expected 1 deal, got %d", len(deals))
	}
}

func TestCreateDealRequiresName(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.CreateDeal(context.Background(), "groupmkl", CreateDealParams{Name: "  "})
	if !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
}

func TestListActivitiesNewestFirst(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	first, err := service.RecordActivity(ctx, "groupmkl", RecordActivityParams{Type: ActivityTypeDeal, Action: "created Meridian renewal", ActorName: "Alex"})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	second, err := service.RecordActivity(ctx, "groupmkl", RecordActivityParams{Type: ActivityTypeContact, Action: "added a contact", ActorName: "Alex"})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := db.Model(&Activity{}).Where("id = ?", second.ID).Update("created_at", first.CreatedAt.Add(time.Minute)).Error; err != nil {
		t.Fatalf("adjust failed: %v", err)
	}

	activities, err := service.ListActivities(ctx, "groupmkl")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(activities))
	}
	if activities[0].ID != second.ID {
		t.Fatalf("expected newest first, got %q", activities[0].ID)
	}
}

func TestListEmailsOrderedByReceivedTime(t *testing.T) {
	service, db := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	seeded := []EmailMessage{
		{OrgID: "groupmkl", GoogleMessageID: "msg-old", Subject: "Old thread", ReceivedAt: base},
		{OrgID: "groupmkl", GoogleMessageID: "msg-new", Subject: "New thread", ReceivedAt: base.Add(2 * time.Hour)},
		{OrgID: "groupmkl", GoogleMessageID: "msg-undated", Subject: "No date header"},
	}
	for _, message := range seeded {
		if err := db.Create(&message).Error; err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	emails, err := service.ListEmails(ctx, "groupmkl")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(emails) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(emails))
	}
	if emails[0].GoogleMessageID != "msg-new" || emails[1].GoogleMessageID != "msg-old" {
		t.Fatalf("expected newest first, got %q then %q", emails[0].GoogleMessageID, emails[1].GoogleMessageID)
	}
	if emails[2].GoogleMessageID != "msg-undated" {
		t.Fatalf("expected undated message last, got %q", emails[2].GoogleMessageID)
	}
}
