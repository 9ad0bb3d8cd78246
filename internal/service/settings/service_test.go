package settings

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/repository"
	"github.com/aimd54/component-directory/pkg/logger"
	"github.com/aimd54/component-directory/test/mocks"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := mocks.NewTestDB(t)
	return NewService(repository.NewSettingsRepository(db), logger.Nop())
}

func TestService_GetDefaults(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAdminSettings(), got)
}

func TestService_Update(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.Update(ctx, map[string]json.RawMessage{
		models.SettingAutoRejectOnFail:    json.RawMessage(`true`),
		models.SettingRefreshIntervalDays: json.RawMessage(`14`),
	}, "alice")
	require.NoError(t, err)
	assert.True(t, got.AutoRejectOnFail)
	assert.Equal(t, 14, got.RefreshIntervalDays)
	assert.False(t, got.AutoApproveOnPass)
}

func TestService_UpdateValidation(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]json.RawMessage
	}{
		{"empty", map[string]json.RawMessage{}},
		{"unknown key", map[string]json.RawMessage{"autoPublish": json.RawMessage(`true`)}},
		{"bool type", map[string]json.RawMessage{models.SettingAutoApproveOnPass: json.RawMessage(`"yes"`)}},
		{"interval zero", map[string]json.RawMessage{models.SettingRefreshIntervalDays: json.RawMessage(`0`)}},
		{"interval fraction", map[string]json.RawMessage{models.SettingRefreshIntervalDays: json.RawMessage(`1.5`)}},
		{"interval too long", map[string]json.RawMessage{models.SettingRefreshIntervalDays: json.RawMessage(`200000`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			_, err := svc.Update(context.Background(), tt.values, "alice")
			assert.ErrorIs(t, err, ErrInvalidSetting)
		})
	}
}

func TestService_UpdateIntervalUpperBound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	got, err := svc.Update(ctx, map[string]json.RawMessage{
		models.SettingRefreshIntervalDays: json.RawMessage(`3650`),
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MaxRefreshIntervalDays, got.RefreshIntervalDays)
	assert.Positive(t, got.RefreshInterval())

	_, err = svc.Update(ctx, map[string]json.RawMessage{
		models.SettingRefreshIntervalDays: json.RawMessage(`3651`),
	}, "alice")
	assert.ErrorIs(t, err, ErrInvalidSetting)
}

func TestService_UpdateIsAllOrNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, map[string]json.RawMessage{
		models.SettingAutoApproveOnPass:   json.RawMessage(`true`),
		models.SettingRefreshIntervalDays: json.RawMessage(`-2`),
	}, "alice")
	require.ErrorIs(t, err, ErrInvalidSetting)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.False(t, got.AutoApproveOnPass)
}
