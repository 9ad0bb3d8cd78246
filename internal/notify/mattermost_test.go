package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/component-directory/internal/config"
	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/service/policy"
	"github.com/aimd54/component-directory/pkg/logger"
)

func newTestClient(t *testing.T, status int) (*Client, *[]Message) {
	t.Helper()

	var received []Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg)) {
			received = append(received, msg)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	client := NewClient(&config.MattermostConfig{
		WebhookURL: server.URL,
		Channel:    "components",
		Enabled:    true,
	}, logger.Nop())
	return client, &received
}

func TestClient_Disabled(t *testing.T) {
	client := NewClient(&config.MattermostConfig{Enabled: false, WebhookURL: "http://127.0.0.1:1"}, logger.Nop())

	assert.NoError(t, client.SendMessage(&Message{Text: "hello"}))
	assert.NoError(t, client.NotifyRefreshRun(&models.RefreshLog{}))
}

func TestClient_SendMessageDefaults(t *testing.T) {
	client, received := newTestClient(t, http.StatusOK)

	require.NoError(t, client.SendMessage(&Message{Text: "hello"}))
	require.Len(t, *received, 1)
	assert.Equal(t, "components", (*received)[0].Channel)
	assert.Equal(t, botUsername, (*received)[0].Username)
}

func TestClient_SendMessageErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.StatusInternalServerError)

	err := client.SendMessage(&Message{Text: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_NotifyReview(t *testing.T) {
	client, received := newTestClient(t, http.StatusOK)

	pkg := &models.Package{
		Name:            "@acme/widget",
		AIReviewStatus:  models.AIReviewPassed,
		AIReviewSummary: "Solid component.",
		AIReviewCriteria: []models.ReviewCriterion{
			{Name: "component_definition", Passed: true},
			{Name: "readme", Passed: false},
		},
	}
	decision := policy.Decision{Changed: true, From: "pending", To: "approved", Reason: "auto-approved"}

	require.NoError(t, client.NotifyReview(pkg, decision))
	require.Len(t, *received, 1)

	att := (*received)[0].Attachments[0]
	assert.Equal(t, colorGood, att.Color)
	assert.Equal(t, "Solid component.", att.Text)
	require.Len(t, att.Fields, 4)
	assert.Equal(t, "1/2 passed", att.Fields[1].Value)
	assert.Equal(t, "readme", att.Fields[2].Value)
	assert.Contains(t, att.Fields[3].Value, "approved")
}

func TestClient_NotifyRefreshRun(t *testing.T) {
	client, received := newTestClient(t, http.StatusOK)

	runLog := &models.RefreshLog{
		RunID:             "run-1",
		Status:            models.RefreshStatusFailed,
		PackagesProcessed: 12,
		PackagesFailed:    12,
	}
	for i := 0; i < 12; i++ {
		runLog.Errors = append(runLog.Errors, models.RefreshError{PackageName: "pkg", Error: "boom"})
	}

	require.NoError(t, client.NotifyRefreshRun(runLog))
	require.Len(t, *received, 1)

	att := (*received)[0].Attachments[0]
	assert.Equal(t, colorDanger, att.Color)
	assert.Equal(t, "Scheduled refresh failed", att.Title)
	assert.Contains(t, att.Text, "and 2 more")
}
