package integrations

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound indicates no integration record exists for the organization.
var ErrNotFound = errors.New("integrations: record not found")

// Store persists integration records.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store over the provided database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get loads the Google integration record for an organization.
func (s *Store) Get(ctx context.Context, orgID string) (Integration, error) {
	var record Integration
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND provider = ?", orgID, ProviderGoogle).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Integration{}, ErrNotFound
	}
	if err != nil {
		return Integration{}, err
	}
	return record, nil
}

// ConnectParams carries the credentials captured by the interactive connect flow.
type ConnectParams struct {
	Email        string
	RefreshToken string
	Scopes       []string
}

// Connect upserts the integration record with connected state and fresh credentials.
func (s *Store) Connect(ctx context.Context, orgID string, params ConnectParams) error {
	record := Integration{
		OrgID:        orgID,
		Provider:     ProviderGoogle,
		Connected:    true,
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Scopes:       strings.Join(params.Scopes, ","),
		RefreshToken: params.RefreshToken,
		LastError:    "",
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "org_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"connected", "account_email", "scopes", "refresh_token", "last_error", "updated_at",
		}),
	}).Create(&record).Error
}

// Disconnect flips the connected flag without discarding the stored credentials,
// mirroring the original settings screen behavior.
func (s *Store) Disconnect(ctx context.Context, orgID string) error {
	return s.update(ctx, orgID, map[string]interface{}{"connected": false})
}

// MarkRefreshFailed records a credential failure: the record is disconnected
// and carries a non-empty error string until the user reconnects.
func (s *Store) MarkRefreshFailed(ctx context.Context, orgID, message string) error {
	if strings.TrimSpace(message) == "" {
		message = "Failed to refresh token. Please reconnect."
	}
	return s.update(ctx, orgID, map[string]interface{}{
		"connected":  false,
		"last_error": message,
	})
}

// SaveTokens persists a freshly minted access token and, when Google rotates
// it, the replacement refresh token.
func (s *Store) SaveTokens(ctx context.Context, orgID, accessToken, refreshToken string) error {
	updates := map[string]interface{}{"access_token": accessToken}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return s.update(ctx, orgID, updates)
}

// StampSynced records the wall-clock time of the last successful sync pass.
// This write is deliberately outside the sync transaction, so a crash between
// the batch commit and this stamp leaves stale metadata but correct data.
func (s *Store) StampSynced(ctx context.Context, orgID string, at time.Time) error {
	return s.update(ctx, orgID, map[string]interface{}{
		"last_sync_at": at,
		"last_error":   "",
	})
}

func (s *Store) update(ctx context.Context, orgID string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&Integration{}).
		Where("org_id = ? AND provider = ?", orgID, ProviderGoogle).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
