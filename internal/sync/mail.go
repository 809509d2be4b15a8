package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/groupmkl/synergize-api/internal/crm"
	"github.com/groupmkl/synergize-api/internal/google"
)

var emailMessageColumns = []string{
	"thread_id", "subject", "from_address", "to_address", "date_header", "received_at", "snippet", "updated_at",
}

// SyncMail lists the 50 most recent message ids, fetches each message's
// payload serially, and upserts one EmailMessage row per external message id.
// Every pass re-fetches the same most-recent window; there is no incremental
// marker.
func (s *Service) SyncMail(ctx context.Context, orgID string) (Result, error) {
	if strings.TrimSpace(orgID) == "" {
		return Result{}, errMissingOrgID
	}

	unlock := s.locks.Lock(orgID)
	defer unlock()

	accessToken, err := s.tokens.AccessToken(ctx, orgID)
	if err != nil {
		return Result{}, err
	}

	messageIDs, err := s.mail.ListMessageIDs(ctx, accessToken, mailMaxResults)
	if err != nil {
		return Result{}, fmt.Errorf("sync: list messages: %w", err)
	}
	if len(messageIDs) == 0 {
		s.logger.Info("no messages found", zap.String("org_id", orgID))
		return Result{ItemsSynced: 0, Message: "No messages found."}, nil
	}

	records := make([]google.MessageRecord, 0, len(messageIDs))
	for _, messageID := range messageIDs {
		record, err := s.mail.GetMessage(ctx, accessToken, messageID)
		if errors.Is(err, google.ErrMissingMessageID) {
			s.logger.Warn("skipping message without id",
				zap.String("org_id", orgID),
				zap.String("message_id", messageID))
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("sync: fetch message %s: %w", messageID, err)
		}
		records = append(records, record)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			message := crm.EmailMessage{
				OrgID:           orgID,
				GoogleMessageID: record.ID,
				ThreadID:        record.ThreadID,
				Subject:         record.Subject,
				From:            record.From,
				To:              record.To,
				Date:            record.Date,
				ReceivedAt:      record.Received,
				Snippet:         record.Snippet,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "org_id"}, {Name: "google_message_id"}},
				DoUpdates: clause.AssignmentColumns(emailMessageColumns),
			}).Create(&message).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("sync: write messages: %w", err)
	}

	s.stampSynced(ctx, orgID)

	s.logger.Info("mail sync completed",
		zap.String("org_id", orgID),
		zap.Int("messages", len(records)))
	return Result{
		ItemsSynced: len(records),
		Message:     fmt.Sprintf("%d emails synced.", len(records)),
	}, nil
}
