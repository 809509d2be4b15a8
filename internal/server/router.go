package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/groupmkl/synergize-api/internal/auth"
	"github.com/groupmkl/synergize-api/internal/crm"
	"github.com/groupmkl/synergize-api/internal/integrations"
	"github.com/groupmkl/synergize-api/internal/orgs"
	"github.com/groupmkl/synergize-api/internal/sync"
)

const identityContextKey = "synergize_identity"

var (
	errMissingGoogleVerifier = errors.New("google verifier dependency required")
	errMissingTokenManager   = errors.New("token manager dependency required")
	errMissingOrgsService    = errors.New("orgs service dependency required")
	errMissingSyncService    = errors.New("sync service dependency required")
	errMissingCRMService     = errors.New("crm service dependency required")
	errMissingIntegrations   = errors.New("integrations store dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleClaims, error)
}

type SessionTokenManager interface {
	IssueSessionToken(ctx context.Context, claims auth.GoogleClaims) (string, int64, error)
	ValidateToken(token string) (auth.Identity, error)
}

// SyncRunner is satisfied by sync.Service.
type SyncRunner interface {
	SyncCalendar(ctx context.Context, orgID string) (sync.Result, error)
	SyncMail(ctx context.Context, orgID string) (sync.Result, error)
	SyncTasks(ctx context.Context, orgID string) (sync.Result, error)
}

type Dependencies struct {
	GoogleVerifier GoogleVerifier
	TokenManager   SessionTokenManager
	Orgs           *orgs.Service
	Integrations   *integrations.Store
	Sync           SyncRunner
	CRM            *crm.Service
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.Orgs == nil {
		return nil, errMissingOrgsService
	}
	if deps.Integrations == nil {
		return nil, errMissingIntegrations
	}
	if deps.Sync == nil {
		return nil, errMissingSyncService
	}
	if deps.CRM == nil {
		return nil, errMissingCRMService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:     deps.GoogleVerifier,
		tokens:       deps.TokenManager,
		orgs:         deps.Orgs,
		integrations: deps.Integrations,
		sync:         deps.Sync,
		crm:          deps.CRM,
		logger:       logger,
	}

	router.POST("/auth/google", handler.handleGoogleAuth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/org/membership", handler.handleEnsureMembership)
	protected.POST("/sync/calendar", handler.handleSync(deps.Sync.SyncCalendar))
	protected.POST("/sync/mail", handler.handleSync(deps.Sync.SyncMail))
	protected.POST("/sync/tasks", handler.handleSync(deps.Sync.SyncTasks))

	scoped := protected.Group("/orgs/:orgId")
	scoped.Use(handler.requireMembership)
	scoped.GET("/integrations/google", handler.handleGetIntegration)
	scoped.POST("/integrations/google/connect", handler.handleConnectIntegration)
	scoped.POST("/integrations/google/disconnect", handler.handleDisconnectIntegration)
	scoped.GET("/tasks", handler.handleListTasks)
	scoped.POST("/tasks", handler.handleCreateTask)
	scoped.POST("/tasks/:taskId/toggle", handler.handleToggleTask)
	scoped.GET("/calendar-events", handler.handleListCalendarEvents)
	scoped.GET("/emails", handler.handleListEmails)
	scoped.GET("/deals", handler.handleListDeals)
	scoped.POST("/deals", handler.handleCreateDeal)
	scoped.GET("/dashboard", handler.handleDashboard)
	scoped.GET("/activities", handler.handleListActivities)
	scoped.POST("/activities", handler.handleRecordActivity)

	return router, nil
}

type httpHandler struct {
	verifier     GoogleVerifier
	tokens       SessionTokenManager
	orgs         *orgs.Service
	integrations *integrations.Store
	sync         SyncRunner
	crm          *crm.Service
	logger       *zap.Logger
}

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleGoogleAuth(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	claims, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	token, expiresIn, err := h.tokens.IssueSessionToken(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, authResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

type membershipResponsePayload struct {
	Success bool   `json:"success"`
	Created bool   `json:"created"`
	Role    string `json:"role,omitempty"`
	Message string `json:"message"`
}

func (h *httpHandler) handleEnsureMembership(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.orgs.EnsureMembership(c.Request.Context(), identity)
	if err != nil {
		h.writeDomainError(c, err, "membership bootstrap failed")
		return
	}

	c.JSON(http.StatusOK, membershipResponsePayload{
		Success: true,
		Created: result.Created,
		Role:    result.Role,
		Message: result.Message,
	})
}

type syncRequestPayload struct {
	OrgID string `json:"orgId"`
}

type syncResponsePayload struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ItemsSynced int    `json:"itemsSynced"`
}

// handleSync wraps one of the three sync procedures with the shared request
// shape: a required orgId, a membership check, and the shared error mapping.
func (h *httpHandler) handleSync(run func(ctx context.Context, orgID string) (sync.Result, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := callerIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var request syncRequestPayload
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&request); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
				return
			}
		}
		orgID := strings.TrimSpace(request.OrgID)
		if orgID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		if err := h.orgs.RequireMembership(c.Request.Context(), orgID, identity.UserID); err != nil {
			h.writeDomainError(c, err, "membership check failed")
			return
		}

		result, err := run(c.Request.Context(), orgID)
		if err != nil {
			h.writeDomainError(c, err, "sync failed")
			return
		}

		c.JSON(http.StatusOK, syncResponsePayload{
			Success:     true,
			Message:     result.Message,
			ItemsSynced: result.ItemsSynced,
		})
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	identity, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(identityContextKey, identity)
	c.Next()
}

// requireMembership gates the org-scoped routes on the caller belonging to
// the organization in the path.
func (h *httpHandler) requireMembership(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	orgID := strings.TrimSpace(c.Param("orgId"))
	if orgID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := h.orgs.RequireMembership(c.Request.Context(), orgID, identity.UserID); err != nil {
		if errors.Is(err, orgs.ErrNotMember) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		h.logger.Error("membership check failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Next()
}

func callerIdentity(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok && identity.UserID != ""
}

// writeDomainError maps service errors to the response contract: a
// disconnected integration is a precondition failure, a dead refresh token
// demands reauthentication, and domain or membership violations are
// forbidden.
func (h *httpHandler) writeDomainError(c *gin.Context, err error, logMessage string) {
	switch {
	case errors.Is(err, integrations.ErrNotConnected):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "not_connected"})
	case errors.Is(err, integrations.ErrRefreshFailed):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "reauth_required"})
	case errors.Is(err, orgs.ErrInvalidDomain):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid_domain", "invalidDomain": true})
	case errors.Is(err, orgs.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.logger.Error(logMessage, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
