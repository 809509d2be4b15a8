package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/groupmkl/synergize-api/internal/crm"
	"github.com/groupmkl/synergize-api/internal/integrations"
)

type integrationResponsePayload struct {
	Connected  bool     `json:"connected"`
	Email      string   `json:"email,omitempty"`
	Scopes     []string `json:"scopes,omitempty"`
	LastSyncAt string   `json:"lastSyncAt,omitempty"`
	LastError  string   `json:"lastError,omitempty"`
}

func integrationResponse(integration integrations.Integration) integrationResponsePayload {
	response := integrationResponsePayload{
		Connected: integration.Connected,
		Email:     integration.Email,
		Scopes:    integration.ScopeList(),
		LastError: integration.LastError,
	}
	if integration.LastSyncAt != nil {
		response.LastSyncAt = integration.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return response
}

func (h *httpHandler) handleGetIntegration(c *gin.Context) {
	integration, err := h.integrations.Get(c.Request.Context(), c.Param("orgId"))
	if errors.Is(err, integrations.ErrNotFound) {
		c.JSON(http.StatusOK, integrationResponsePayload{Connected: false})
		return
	}
	if err != nil {
		h.logger.Error("failed to load integration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, integrationResponse(integration))
}

type connectRequestPayload struct {
	Email        string   `json:"email"`
	RefreshToken string   `json:"refreshToken"`
	Scopes       []string `json:"scopes"`
}

func (h *httpHandler) handleConnectIntegration(c *gin.Context) {
	var request connectRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.RefreshToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	orgID := c.Param("orgId")
	err := h.integrations.Connect(c.Request.Context(), orgID, integrations.ConnectParams{
		Email:        request.Email,
		RefreshToken: request.RefreshToken,
		Scopes:       request.Scopes,
	})
	if err != nil {
		h.logger.Error("failed to connect integration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	integration, err := h.integrations.Get(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to reload integration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, integrationResponse(integration))
}

func (h *httpHandler) handleDisconnectIntegration(c *gin.Context) {
	err := h.integrations.Disconnect(c.Request.Context(), c.Param("orgId"))
	if err != nil && !errors.Is(err, integrations.ErrNotFound) {
		h.logger.Error("failed to disconnect integration", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, integrationResponsePayload{Connected: false})
}

type taskResponsePayload struct {
	ID               string `json:"id"`
	GoogleTaskID     string `json:"googleTaskId,omitempty"`
	TaskListID       string `json:"taskListId,omitempty"`
	Title            string `json:"title"`
	Notes            string `json:"notes,omitempty"`
	Due              string `json:"due,omitempty"`
	Status           string `json:"status"`
	CompletedAt      string `json:"completedAt,omitempty"`
	LinkedEntityType string `json:"linkedEntityType,omitempty"`
	LinkedEntityID   string `json:"linkedEntityId,omitempty"`
}

func taskResponse(task crm.Task) taskResponsePayload {
	return taskResponsePayload{
		ID:               task.ID,
		GoogleTaskID:     task.GoogleTaskID,
		TaskListID:       task.TaskListID,
		Title:            task.Title,
		Notes:            task.Notes,
		Due:              task.Due,
		Status:           task.Status,
		CompletedAt:      task.CompletedAt,
		LinkedEntityType: task.LinkedEntityType,
		LinkedEntityID:   task.LinkedEntityID,
	}
}

func (h *httpHandler) handleListTasks(c *gin.Context) {
	tasks, err := h.crm.ListTasks(c.Request.Context(), c.Param("orgId"), c.Query("status"))
	if err != nil {
		h.logger.Error("failed to list tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	response := make([]taskResponsePayload, 0, len(tasks))
	for _, task := range tasks {
		response = append(response, taskResponse(task))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": response})
}

type createTaskRequestPayload struct {
	Title            string `json:"title"`
	Notes            string `json:"notes"`
	Due              string `json:"due"`
	LinkedEntityType string `json:"linkedEntityType"`
	LinkedEntityID   string `json:"linkedEntityId"`
}

func (h *httpHandler) handleCreateTask(c *gin.Context) {
	var request createTaskRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	task, err := h.crm.CreateTask(c.Request.Context(), c.Param("orgId"), crm.CreateTaskParams{
		Title:            request.Title,
		Notes:            request.Notes,
		Due:              request.Due,
		LinkedEntityType: request.LinkedEntityType,
		LinkedEntityID:   request.LinkedEntityID,
	})
	if errors.Is(err, crm.ErrMissingTitle) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title_required"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, taskResponse(task))
}

func (h *httpHandler) handleToggleTask(c *gin.Context) {
	task, err := h.crm.ToggleTask(c.Request.Context(), c.Param("orgId"), c.Param("taskId"))
	if errors.Is(err, crm.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to toggle task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, taskResponse(task))
}

type calendarEventResponsePayload struct {
	ID               string   `json:"id"`
	Summary          string   `json:"summary"`
	Start            string   `json:"start"`
	End              string   `json:"end,omitempty"`
	Attendees        []string `json:"attendees,omitempty"`
	HTMLLink         string   `json:"htmlLink,omitempty"`
	LinkedEntityType string   `json:"linkedEntityType,omitempty"`
	LinkedEntityID   string   `json:"linkedEntityId,omitempty"`
}

func (h *httpHandler) handleListCalendarEvents(c *gin.Context) {
	events, err := h.crm.ListCalendarEvents(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		h.logger.Error("failed to list calendar events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	response := make([]calendarEventResponsePayload, 0, len(events))
	for _, event := range events {
		var attendees []string
		if event.Attendees != "" {
			attendees = strings.Split(event.Attendees, ",")
		}
		response = append(response, calendarEventResponsePayload{
			ID:               event.GoogleEventID,
			Summary:          event.Summary,
			Start:            event.Start,
			End:              event.End,
			Attendees:        attendees,
			HTMLLink:         event.HTMLLink,
			LinkedEntityType: event.LinkedEntityType,
			LinkedEntityID:   event.LinkedEntityID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": response})
}

type emailResponsePayload struct {
	ID               string `json:"id"`
	ThreadID         string `json:"threadId,omitempty"`
	Subject          string `json:"subject"`
	From             string `json:"from"`
	To               string `json:"to,omitempty"`
	Date             string `json:"date,omitempty"`
	Snippet          string `json:"snippet,omitempty"`
	LinkedEntityType string `json:"linkedEntityType,omitempty"`
	LinkedEntityID   string `json:"linkedEntityId,omitempty"`
}

func (h *httpHandler) handleListEmails(c *gin.Context) {
	emails, err := h.crm.ListEmails(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		h.logger.Error("failed to list emails", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	response := make([]emailResponsePayload, 0, len(emails))
	for _, email := range emails {
		response = append(response, emailResponsePayload{
			ID:               email.GoogleMessageID,
			ThreadID:         email.ThreadID,
			Subject:          email.Subject,
			From:             email.From,
			To:               email.To,
			Date:             email.Date,
			Snippet:          email.Snippet,
			LinkedEntityType: email.LinkedEntityType,
			LinkedEntityID:   email.LinkedEntityID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"emails": response})
}

type dealResponsePayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Stage  string `json:"stage"`
	Amount int64  `json:"amountCents"`
}

func dealResponse(deal crm.Deal) dealResponsePayload {
	return dealResponsePayload{
		ID:     deal.ID,
		Name:   deal.Name,
		Stage:  deal.Stage,
		Amount: deal.Amount,
	}
}

func (h *httpHandler) handleListDeals(c *gin.Context) {
	deals, err := h.crm.ListDeals(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		h.logger.Error("failed to list deals", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	response := make([]dealResponsePayload, 0, len(deals))
	for _, deal := range deals {
		response = append(response, dealResponse(deal))
	}
	c.JSON(http.StatusOK, gin.H{"deals": response})
}

type createDealRequestPayload struct {
	Name   string `json:"name"`
	Stage  string `json:"stage"`
	Amount int64  `json:"amountCents"`
}

func (h *httpHandler) handleCreateDeal(c *gin.Context) {
	var request createDealRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	deal, err := h.crm.CreateDeal(c.Request.Context(), c.Param("orgId"), crm.CreateDealParams{
		Name:   request.Name,
		Stage:  request.Stage,
		Amount: request.Amount,
	})
	if errors.Is(err, crm.ErrMissingName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name_required"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create deal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, dealResponse(deal))
}

func (h *httpHandler) handleDashboard(c *gin.Context) {
	overview, err := h.crm.DashboardOverview(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		h.logger.Error("failed to build dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *httpHandler) handleListActivities(c *gin.Context) {
	activities, err := h.crm.ListActivities(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		h.logger.Error("failed to list activities", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

type recordActivityRequestPayload struct {
	Type    string `json:"type"`
	Action  string `json:"action"`
	Details string `json:"details"`
}

func (h *httpHandler) handleRecordActivity(c *gin.Context) {
	identity, ok := callerIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request recordActivityRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Action) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	actorName := identity.Name
	if actorName == "" {
		actorName = identity.Email
	}
	activity, err := h.crm.RecordActivity(c.Request.Context(), c.Param("orgId"), crm.RecordActivityParams{
		Type:      request.Type,
		Action:    request.Action,
		ActorName: actorName,
		Details:   request.Details,
	})
	if err != nil {
		h.logger.Error("failed to record activity", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusCreated, activity)
}
