package integrations

import (
	"strings"
	"time"
)

// ProviderGoogle is the only provider currently wired.
const ProviderGoogle = "google"

// Integration stores the OAuth connection state for one external provider per
// organization. The access token is transient and refreshed before each sync;
// the refresh token is the long-lived credential.
type Integration struct {
	OrgID        string     `gorm:"column:org_id;primaryKey;size:190;not null"`
	Provider     string     `gorm:"column:provider;primaryKey;size:32;not null"`
	Connected    bool       `gorm:"column:connected;not null;default:false"`
	Email        string     `gorm:"column:account_email;size:320"`
	Scopes       string     `gorm:"column:scopes;type:text"`
	RefreshToken string     `gorm:"column:refresh_token;type:text"`
	AccessToken  string     `gorm:"column:access_token;type:text"`
	LastSyncAt   *time.Time `gorm:"column:last_sync_at"`
	LastError    string     `gorm:"column:last_error;type:text"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Integration) TableName() string {
	return "org_integrations"
}

// ScopeList splits the stored comma-joined scope string.
func (i Integration) ScopeList() []string {
	if strings.TrimSpace(i.Scopes) == "" {
		return nil
	}
	parts := strings.Split(i.Scopes, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			scopes = append(scopes, trimmed)
		}
	}
	return scopes
}
