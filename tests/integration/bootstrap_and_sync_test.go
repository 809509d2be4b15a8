package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/groupmkl/synergize-api/internal/auth"
	"github.com/groupmkl/synergize-api/internal/crm"
	"github.com/groupmkl/synergize-api/internal/google"
	"github.com/groupmkl/synergize-api/internal/integrations"
	"github.com/groupmkl/synergize-api/internal/orgs"
	"github.com/groupmkl/synergize-api/internal/server"
	syncsvc "github.com/groupmkl/synergize-api/internal/sync"
)

const (
	sessionSigningSecret = "integration-secret"
	organizationID       = "groupmkl"
	memberEmail          = "alex@groupmkl.com"
	jsonContentType      = "application/json"
)

type fixedVerifier struct{}

func (fixedVerifier) Verify(context.Context, string) (auth.GoogleClaims, error) {
	return auth.GoogleClaims{
		Subject: "user-abc",
		Email:   memberEmail,
		Name:    "Alex",
	}, nil
}

type fixedCalendar struct{}

func (fixedCalendar) ListUpcomingEvents(context.Context, string, time.Time, time.Duration, int64) ([]google.EventRecord, error) {
	return []google.EventRecord{
		{ID: "evt-1", Summary: "Kickoff", Start: "2026-03-02T10:00:00Z", End: "2026-03-02T11:00:00Z"},
		{ID: "evt-2", Summary: "Review", Start: "2026-03-03T10:00:00Z", End: "2026-03-03T11:00:00Z"},
	}, nil
}

type fixedMail struct{}

func (fixedMail) ListMessageIDs(context.Context, string, int64) ([]string, error) {
	return []string{"msg-1"}, nil
}

func (fixedMail) GetMessage(_ context.Context, _ string, messageID string) (google.MessageRecord, error) {
	return google.MessageRecord{ID: messageID, Subject: "Quarterly numbers", From: "cfo@groupmkl.com"}, nil
}

type fixedTasks struct{}

func (fixedTasks) ListTaskLists(context.Context, string) ([]google.TaskListRecord, error) {
	return []google.TaskListRecord{{ID: "list-1", Title: "Work"}}, nil
}

func (fixedTasks) ListTasks(_ context.Context, _ string, listID string) ([]google.TaskRecord, error) {
	return []google.TaskRecord{
		{ID: "task-1", ListID: listID, Title: "Prepare deck", Status: crm.TaskStatusNeedsAction},
	}, nil
}

func TestBootstrapAndSyncFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&orgs.Organization{}, &orgs.Membership{},
		&integrations.Integration{},
		&crm.CalendarEvent{}, &crm.EmailMessage{}, &crm.Task{}, &crm.Activity{}, &crm.Deal{},
	)
	if err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", jsonContentType)
		_, _ = w.Write([]byte(`{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	orgService, err := orgs.NewService(orgs.ServiceConfig{
		Database:      db,
		OrgID:         organizationID,
		OrgName:       "Synergize CRM",
		AllowedDomain: "@groupmkl.com",
		OwnerEmail:    "info@groupmkl.com",
		Logger:        zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build orgs service: %v", err)
	}
	crmService, err := crm.NewService(crm.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build crm service: %v", err)
	}

	integrationStore := integrations.NewStore(db)
	refresher := integrations.NewRefresher(integrationStore, integrations.RefresherConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenServer.URL,
		Logger:       zap.NewNop(),
	})

	syncService, err := syncsvc.NewService(syncsvc.ServiceConfig{
		Database: db,
		Store:    integrationStore,
		Tokens:   refresher,
		Calendar: fixedCalendar{},
		Mail:     fixedMail{},
		Tasks:    fixedTasks{},
		Logger:   zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build sync service: %v", err)
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(sessionSigningSecret),
		Issuer:        "synergize-auth",
		Audience:      "synergize-api",
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		GoogleVerifier: fixedVerifier{},
		TokenManager:   tokenManager,
		Orgs:           orgService,
		Integrations:   integrationStore,
		Sync:           syncService,
		CRM:            crmService,
		Logger:         zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	// Exchange a Google ID token for a session token.
	authBody := postJSON(testContext, testServer.URL+"/auth/google", "", map[string]string{"id_token": "google-id-token"}, http.StatusOK)
	sessionToken, _ := authBody["access_token"].(string)
	if sessionToken == "" {
		testContext.Fatal("expected a session token")
	}

	// First call creates the organization and the membership.
	membership := postJSON(testContext, testServer.URL+"/org/membership", sessionToken, nil, http.StatusOK)
	if membership["success"] != true {
		testContext.Fatalf("expected success marker, got %v", membership)
	}
	if membership["message"] != "Membership created with role: member." {
		testContext.Fatalf("unexpected membership message: %v", membership["message"])
	}

	syncBody := map[string]string{"orgId": organizationID}

	// Syncing without an organization id is unauthenticated.
	postJSON(testContext, testServer.URL+"/sync/calendar", sessionToken, nil, http.StatusUnauthorized)

	// Syncing before the integration is connected is a precondition failure.
	postJSON(testContext, testServer.URL+"/sync/calendar", sessionToken, syncBody, http.StatusPreconditionFailed)

	postJSON(testContext, testServer.URL+"/orgs/"+organizationID+"/integrations/google/connect", sessionToken, map[string]interface{}{
		"email":        memberEmail,
		"refreshToken": "refresh-token-1",
		"scopes":       []string{"https://www.googleapis.com/auth/calendar"},
	}, http.StatusOK)

	calendarResult := postJSON(testContext, testServer.URL+"/sync/calendar", sessionToken, syncBody, http.StatusOK)
	if calendarResult["message"] != "2 events synced." {
		testContext.Fatalf("unexpected calendar message: %v", calendarResult["message"])
	}
	mailResult := postJSON(testContext, testServer.URL+"/sync/mail", sessionToken, syncBody, http.StatusOK)
	if mailResult["message"] != "1 emails synced." {
		testContext.Fatalf("unexpected mail message: %v", mailResult["message"])
	}
	tasksResult := postJSON(testContext, testServer.URL+"/sync/tasks", sessionToken, syncBody, http.StatusOK)
	if tasksResult["message"] != "1 tasks synced." {
		testContext.Fatalf("unexpected tasks message: %v", tasksResult["message"])
	}

	// Re-running a sync upserts instead of duplicating.
	postJSON(testContext, testServer.URL+"/sync/calendar", sessionToken, syncBody, http.StatusOK)
	events := getJSON(testContext, testServer.URL+"/orgs/"+organizationID+"/calendar-events", sessionToken)
	listed, _ := events["events"].([]interface{})
	if len(listed) != 2 {
		testContext.Fatalf("expected 2 events after re-sync, got %d", len(listed))
	}

	integration := getJSON(testContext, testServer.URL+"/orgs/"+organizationID+"/integrations/google", sessionToken)
	if integration["connected"] != true {
		testContext.Fatalf("expected connected integration, got %v", integration)
	}
	if integration["lastSyncAt"] == "" || integration["lastSyncAt"] == nil {
		testContext.Fatal("expected a last sync stamp after syncing")
	}

	// Disconnecting restores the precondition failure even though the refresh
	// token stays stored for a later reconnect.
	postJSON(testContext, testServer.URL+"/orgs/"+organizationID+"/integrations/google/disconnect", sessionToken, nil, http.StatusOK)
	postJSON(testContext, testServer.URL+"/sync/calendar", sessionToken, syncBody, http.StatusPreconditionFailed)
}

func postJSON(testContext *testing.T, url, token string, body interface{}, wantStatus int) map[string]interface{} {
	testContext.Helper()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			testContext.Fatalf("failed to encode body: %v", err)
		}
	}
	request, err := http.NewRequest(http.MethodPost, url, &payload)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", jsonContentType)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != wantStatus {
		raw, _ := io.ReadAll(response.Body)
		testContext.Fatalf("unexpected status for %s: got %d, want %d (%s)", url, response.StatusCode, wantStatus, raw)
	}
	return decodeResponse(testContext, response.Body)
}

func getJSON(testContext *testing.T, url, token string) map[string]interface{} {
	testContext.Helper()

	request, err := http.NewRequest(http.MethodGet, url, http.NoBody)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected status for %s: %d", url, response.StatusCode)
	}
	return decodeResponse(testContext, response.Body)
}

func decodeResponse(testContext *testing.T, body io.Reader) map[string]interface{} {
	testContext.Helper()

	var decoded map[string]interface{}
	if err := json.NewDecoder(body).Decode(&decoded); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	return decoded
}
