package crm

import "time"

// Task statuses mirror the Google Tasks API values so synced and locally
// created rows share one vocabulary.
const (
	TaskStatusNeedsAction = "needsAction"
	TaskStatusCompleted   = "completed"
)

// Activity types shown on the dashboard feed.
const (
	ActivityTypeContact = "contact"
	ActivityTypeCompany = "company"
	ActivityTypeDeal    = "deal"
)

// CalendarEvent is a synced Google Calendar event. Rows are keyed by
// (org, google event id) so re-running a sync upserts rather than duplicates.
type CalendarEvent struct {
	OrgID            string    `gorm:"column:org_id;primaryKey;size:190;not null"`
	GoogleEventID    string    `gorm:"column:google_event_id;primaryKey;size:190;not null"`
	Summary          string    `gorm:"column:summary;size:1024"`
	Start            string    `gorm:"column:start_at;size:64;index:idx_events_org_start,priority:2"`
	End              string    `gorm:"column:end_at;size:64"`
	Attendees        string    `gorm:"column:attendees;type:text"`
	HTMLLink         string    `gorm:"column:html_link;size:1024"`
	LinkedEntityType string    `gorm:"column:linked_entity_type;size:64"`
	LinkedEntityID   string    `gorm:"column:linked_entity_id;size:190"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (CalendarEvent) TableName() string {
	return "calendar_events"
}

// EmailMessage is a synced Gmail message header set plus snippet.
type EmailMessage struct {
	OrgID            string    `gorm:"column:org_id;primaryKey;size:190;not null;index:idx_emails_org_received,priority:1"`
	GoogleMessageID  string    `gorm:"column:google_message_id;primaryKey;size:190;not null"`
	ThreadID         string    `gorm:"column:thread_id;size:190"`
	Subject          string    `gorm:"column:subject;size:2048"`
	From             string    `gorm:"column:from_address;size:1024"`
	To               string    `gorm:"column:to_address;size:1024"`
	Date             string    `gorm:"column:date_header;size:128"`
	ReceivedAt       time.Time `gorm:"column:received_at;index:idx_emails_org_received,priority:2"`
	Snippet          string    `gorm:"column:snippet;type:text"`
	LinkedEntityType string    `gorm:"column:linked_entity_type;size:64"`
	LinkedEntityID   string    `gorm:"column:linked_entity_id;size:190"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (EmailMessage) TableName() string {
	return "email_messages"
}

// Task is either a synced Google Task (ID equals the google task id) or a
// locally created CRM task (ID is a uuid, GoogleTaskID empty until a future
// push sync assigns one).
type Task struct {
	OrgID            string    `gorm:"column:org_id;primaryKey;size:190;not null"`
	ID               string    `gorm:"column:id;primaryKey;size:190;not null"`
	GoogleTaskID     string    `gorm:"column:google_task_id;size:190"`
	TaskListID       string    `gorm:"column:task_list_id;size:190"`
	Title            string    `gorm:"column:title;size:1024;not null"`
	Notes            string    `gorm:"column:notes;type:text"`
	Due              string    `gorm:"column:due;size:64;index:idx_tasks_org_due,priority:2"`
	Status           string    `gorm:"column:status;size:32;not null;default:'needsAction'"`
	CompletedAt      string    `gorm:"column:completed_at;size:64"`
	LinkedEntityType string    `gorm:"column:linked_entity_type;size:64"`
	LinkedEntityID   string    `gorm:"column:linked_entity_id;size:190"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Task) TableName() string {
	return "tasks"
}

// Activity is a dashboard feed entry recording who did what. It is the one
// model serialized directly, so it carries JSON tags.
type Activity struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	OrgID     string    `gorm:"column:org_id;size:190;not null;index:idx_activities_org_time,priority:1" json:"orgId"`
	Type      string    `gorm:"column:type;size:32;not null" json:"type"`
	Action    string    `gorm:"column:action;size:320;not null" json:"action"`
	ActorName string    `gorm:"column:actor_name;size:320" json:"actorName"`
	Details   string    `gorm:"column:details;size:1024" json:"details,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_activities_org_time,priority:2" json:"createdAt"`
}

// TableName provides the explicit table binding for GORM.
func (Activity) TableName() string {
	return "activities"
}

// DealStageLead is the stage assigned to new pipeline entries.
const DealStageLead = "Lead"

// Deal is a pipeline entry; the dashboard reports counts grouped by stage.
type Deal struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	OrgID     string    `gorm:"column:org_id;size:190;not null;index"`
	Name      string    `gorm:"column:name;size:320;not null"`
	Stage     string    `gorm:"column:stage;size:64;not null"`
	Amount    int64     `gorm:"column:amount_cents;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Deal) TableName() string {
	return "deals"
}
