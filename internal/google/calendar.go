package google

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/calendar/v3"
)

// ErrMissingEventID marks an upstream event payload without a usable id.
// Such items are skipped rather than written with a defaulted key.
var ErrMissingEventID = errors.New("google: event missing id")

// EventRecord is the typed result of parsing a Calendar API event payload.
type EventRecord struct {
	ID        string
	Summary   string
	Start     string
	End       string
	Attendees []string
	HTMLLink  string
}

// CalendarClient lists upcoming events on the primary calendar.
type CalendarClient struct {
	limiter *RateLimiter
}

// NewCalendarClient constructs a CalendarClient.
func NewCalendarClient() *CalendarClient {
	return &CalendarClient{limiter: NewRateLimiter(ServiceCalendar)}
}

// ListUpcomingEvents returns single-valued occurrences on the primary
// calendar within [from, from+window), ordered by start time, capped at
// maxResults. One page only; events beyond the cap are dropped.
func (c *CalendarClient) ListUpcomingEvents(ctx context.Context, accessToken string, from time.Time, window time.Duration, maxResults int64) ([]EventRecord, error) {
	service, err := NewCalendarService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	response, err := service.Events.List("primary").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(from.Add(window).Format(time.RFC3339)).
		MaxResults(maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, WrapError(err)
	}

	records := make([]EventRecord, 0, len(response.Items))
	for _, item := range response.Items {
		record, err := ParseEvent(item)
		if errors.Is(err, ErrMissingEventID) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// ParseEvent converts a Calendar API event into a typed record. Events
// without an id fail closed with ErrMissingEventID.
func ParseEvent(event *calendar.Event) (EventRecord, error) {
	if event == nil || event.Id == "" {
		return EventRecord{}, ErrMissingEventID
	}

	record := EventRecord{
		ID:       event.Id,
		Summary:  event.Summary,
		HTMLLink: event.HtmlLink,
	}

	// All-day events carry Date instead of DateTime.
	if event.Start != nil {
		if event.Start.DateTime != "" {
			record.Start = event.Start.DateTime
		} else {
			record.Start = event.Start.Date
		}
	}
	if event.End != nil {
		if event.End.DateTime != "" {
			record.End = event.End.DateTime
		} else {
			record.End = event.End.Date
		}
	}

	for _, attendee := range event.Attendees {
		if attendee != nil && attendee.Email != "" {
			record.Attendees = append(record.Attendees, attendee.Email)
		}
	}

	return record, nil
}
