package sync

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/groupmkl/synergize-api/internal/crm"
)

// calendarEventColumns are the columns a sync pass owns. Linked-entity fields
// are set by the UI and must survive a re-sync, so they are excluded here.
var calendarEventColumns = []string{
	"summary", "start_at", "end_at", "attendees", "html_link", "updated_at",
}

// SyncCalendar lists events on the primary calendar within the next 30 days
// (single occurrences, ordered by start time, first 100) and upserts one
// CalendarEvent row per external event id.
func (s *Service) SyncCalendar(ctx context.Context, orgID string) (Result, error) {
	if strings.TrimSpace(orgID) == "" {
		return Result{}, errMissingOrgID
	}

	unlock := s.locks.Lock(orgID)
	defer unlock()

	accessToken, err := s.tokens.AccessToken(ctx, orgID)
	if err != nil {
		return Result{}, err
	}

	records, err := s.calendar.ListUpcomingEvents(ctx, accessToken, s.now(), calendarWindow, calendarMaxResults)
	if err != nil {
		return Result{}, fmt.Errorf("sync: list calendar events: %w", err)
	}
	if len(records) == 0 {
		s.logger.Info("no upcoming events found", zap.String("org_id", orgID))
		return Result{ItemsSynced: 0, Message: "No upcoming events found."}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			event := crm.CalendarEvent{
				OrgID:         orgID,
				GoogleEventID: record.ID,
				Summary:       record.Summary,
				Start:         record.Start,
				End:           record.End,
				Attendees:     strings.Join(record.Attendees, ","),
				HTMLLink:      record.HTMLLink,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "org_id"}, {Name: "google_event_id"}},
				DoUpdates: clause.AssignmentColumns(calendarEventColumns),
			}).Create(&event).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("sync: write calendar events: %w", err)
	}

	s.stampSynced(ctx, orgID)

	s.logger.Info("calendar sync completed",
		zap.String("org_id", orgID),
		zap.Int("events", len(records)))
	return Result{
		ItemsSynced: len(records),
		Message:     fmt.Sprintf("%d events synced.", len(records)),
	}, nil
}
