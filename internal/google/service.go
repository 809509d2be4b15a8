package google

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// staticTokenSource wraps a short-lived access token minted by the credential
// refresher. Each sync pass builds its services from one freshly exchanged
// token, so no in-library refresh is needed.
func staticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
}

// NewCalendarService creates a Google Calendar API service for the token.
func NewCalendarService(ctx context.Context, accessToken string) (*calendar.Service, error) {
	return calendar.NewService(ctx, option.WithTokenSource(staticTokenSource(accessToken)))
}

// NewGmailService creates a Gmail API service for the token.
func NewGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	return gmail.NewService(ctx, option.WithTokenSource(staticTokenSource(accessToken)))
}

// NewTasksService creates a Google Tasks API service for the token.
func NewTasksService(ctx context.Context, accessToken string) (*tasks.Service, error) {
	return tasks.NewService(ctx, option.WithTokenSource(staticTokenSource(accessToken)))
}
