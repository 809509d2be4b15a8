package google

import (
	"context"
	"errors"

	"google.golang.org/api/tasks/v1"
)

// ErrMissingTaskID marks an upstream task payload without a usable id.
var ErrMissingTaskID = errors.New("google: task missing id")

// TaskListRecord identifies one of the user's task lists.
type TaskListRecord struct {
	ID    string
	Title string
}

// TaskRecord is the typed result of parsing a Tasks API task payload.
type TaskRecord struct {
	ID          string
	ListID      string
	Title       string
	Notes       string
	Due         string
	Status      string
	CompletedAt string
}

// TasksClient lists task lists and their tasks for the authenticated user.
type TasksClient struct {
	limiter *RateLimiter
}

// NewTasksClient constructs a TasksClient.
func NewTasksClient() *TasksClient {
	return &TasksClient{limiter: NewRateLimiter(ServiceTasks)}
}

// ListTaskLists returns all of the user's task lists (one page).
func (c *TasksClient) ListTaskLists(ctx context.Context, accessToken string) ([]TaskListRecord, error) {
	service, err := NewTasksService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	response, err := service.Tasklists.List().Context(ctx).Do()
	if err != nil {
		return nil, WrapError(err)
	}

	lists := make([]TaskListRecord, 0, len(response.Items))
	for _, item := range response.Items {
		if item == nil || item.Id == "" {
			continue
		}
		lists = append(lists, TaskListRecord{ID: item.Id, Title: item.Title})
	}
	return lists, nil
}

// ListTasks returns the tasks in one list (one page).
func (c *TasksClient) ListTasks(ctx context.Context, accessToken, listID string) ([]TaskRecord, error) {
	service, err := NewTasksService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	response, err := service.Tasks.List(listID).Context(ctx).Do()
	if err != nil {
		return nil, WrapError(err)
	}

	records := make([]TaskRecord, 0, len(response.Items))
	for _, item := range response.Items {
		record, err := ParseTask(item, listID)
		if errors.Is(err, ErrMissingTaskID) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ParseTask converts a Tasks API task into a typed record. Tasks without an
// id fail closed with ErrMissingTaskID.
func ParseTask(task *tasks.Task, listID string) (TaskRecord, error) {
	if task == nil || task.Id == "" {
		return TaskRecord{}, ErrMissingTaskID
	}

	return TaskRecord{
		ID:          task.Id,
		ListID:      listID,
		Title:       task.Title,
		Notes:       task.Notes,
		Due:         task.Due,
		Status:      task.Status,
		CompletedAt: stringValue(task.Completed),
	}, nil
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
