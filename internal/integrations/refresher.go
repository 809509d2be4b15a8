package integrations

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

var (
	// ErrNotConnected indicates the integration is missing, disconnected, or
	// lacks a refresh token. Callers must run the interactive connect flow.
	ErrNotConnected = errors.New("integrations: google integration not connected")
	// ErrRefreshFailed indicates the refresh token was rejected by Google.
	// The record has been marked disconnected; the caller must reconnect.
	ErrRefreshFailed = errors.New("integrations: failed to refresh access token")
)

// RefresherConfig carries the OAuth client settings for token exchange.
type RefresherConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// TokenURL overrides the Google token endpoint; tests point it at a stub.
	TokenURL string
	Logger   *zap.Logger
}

// Refresher exchanges a stored refresh token for a short-lived access token
// before each sync pass.
type Refresher struct {
	store       *Store
	oauthConfig *oauth2.Config
	logger      *zap.Logger
}

// NewRefresher constructs a Refresher over the integration store.
func NewRefresher(store *Store, cfg RefresherConfig) *Refresher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}
	return &Refresher{
		store: store,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		logger: logger,
	}
}

// AccessToken loads the organization's integration record and exchanges its
// refresh token for a fresh access token. On exchange failure the record is
// marked disconnected with an error message before the failure propagates.
func (r *Refresher) AccessToken(ctx context.Context, orgID string) (string, error) {
	record, err := r.store.Get(ctx, orgID)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: no record for org %s", ErrNotConnected, orgID)
	}
	if err != nil {
		return "", err
	}
	if !record.Connected {
		return "", fmt.Errorf("%w: integration disconnected", ErrNotConnected)
	}
	if record.RefreshToken == "" {
		return "", fmt.Errorf("%w: refresh token missing", ErrNotConnected)
	}

	source := r.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: record.RefreshToken})
	token, err := source.Token()
	if err != nil {
		r.logger.Warn("access token refresh failed",
			zap.String("org_id", orgID),
			zap.Error(err))
		if markErr := r.store.MarkRefreshFailed(ctx, orgID, "Failed to refresh token. Please reconnect."); markErr != nil {
			r.logger.Error("failed to mark integration disconnected",
				zap.String("org_id", orgID),
				zap.Error(markErr))
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	rotated := ""
	if token.RefreshToken != "" && token.RefreshToken != record.RefreshToken {
		rotated = token.RefreshToken
	}
	if err := r.store.SaveTokens(ctx, orgID, token.AccessToken, rotated); err != nil {
		return "", err
	}

	r.logger.Debug("access token refreshed",
		zap.String("org_id", orgID),
		zap.Time("expires_at", token.Expiry))
	return token.AccessToken, nil
}
