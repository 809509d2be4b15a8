package sync

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/groupmkl/synergize-api/internal/crm"
	"github.com/groupmkl/synergize-api/internal/google"
)

var taskColumns = []string{
	"google_task_id", "task_list_id", "title", "notes", "due", "status", "completed_at", "updated_at",
}

// SyncTasks walks every task list on the account, accumulates the tasks from
// each, and upserts one Task row per external task id. Synced rows use the
// google task id as the primary id, so locally created tasks (uuid ids) are
// never touched by a pass.
func (s *Service) SyncTasks(ctx context.Context, orgID string) (Result, error) {
	if strings.TrimSpace(orgID) == "" {
		return Result{}, errMissingOrgID
	}

	unlock := s.locks.Lock(orgID)
	defer unlock()

	accessToken, err := s.tokens.AccessToken(ctx, orgID)
	if err != nil {
		return Result{}, err
	}

	taskLists, err := s.tasks.ListTaskLists(ctx, accessToken)
	if err != nil {
		return Result{}, fmt.Errorf("sync: list task lists: %w", err)
	}
	if len(taskLists) == 0 {
		s.logger.Info("no task lists found", zap.String("org_id", orgID))
		return Result{ItemsSynced: 0, Message: "No task lists found."}, nil
	}

	var records []google.TaskRecord
	for _, taskList := range taskLists {
		listed, err := s.tasks.ListTasks(ctx, accessToken, taskList.ID)
		if err != nil {
			return Result{}, fmt.Errorf("sync: list tasks in %s: %w", taskList.ID, err)
		}
		records = append(records, listed...)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			task := crm.Task{
				OrgID:        orgID,
				ID:           record.ID,
				GoogleTaskID: record.ID,
				TaskListID:   record.ListID,
				Title:        record.Title,
				Notes:        record.Notes,
				Due:          record.Due,
				Status:       record.Status,
				CompletedAt:  record.CompletedAt,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "org_id"}, {Name: "id"}},
				DoUpdates: clause.AssignmentColumns(taskColumns),
			}).Create(&task).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("sync: write tasks: %w", err)
	}

	s.stampSynced(ctx, orgID)

	s.logger.Info("tasks sync completed",
		zap.String("org_id", orgID),
		zap.Int("tasks", len(records)))
	return Result{
		ItemsSynced: len(records),
		Message:     fmt.Sprintf("%d tasks synced.", len(records)),
	}, nil
}
