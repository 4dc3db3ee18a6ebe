package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saturn/internal/model"
	"github.com/sells-group/saturn/internal/store"
)

func seedResults(t *testing.T, dsn string, ok, failed int) {
	t.Helper()
	st, err := store.NewSQLite(dsn)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	var rows []model.ScoredRequest
	now := time.Now().UTC()
	for range ok {
		rows = append(rows, model.ScoredRequest{
			Request:   model.NewRequest("B1", "A1", 0.5),
			Result:    model.Result{Score: 0.5, Multiplier: 2, Status: model.StatusOK},
			CreatedAt: now,
		})
	}
	for range failed {
		rows = append(rows, model.ScoredRequest{
			Request:   model.NewRequest("B1", "A1", 0.5).WithPacing(3),
			Result:    model.Result{Status: model.StatusError, Message: "invalid argument"},
			CreatedAt: now,
		})
	}
	require.NoError(t, st.SaveResults(context.Background(), rows))
}

func TestStatusCommand_Healthy(t *testing.T) {
	c := useTestConfig(t, "")
	seedResults(t, c.Store.DatabaseURL, 10, 0)

	out, err := execute(t, statusCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "10")
	assert.Contains(t, out, "2.0000")
	assert.Contains(t, out, "No alerts.")
}

func TestStatusCommand_Alerts(t *testing.T) {
	c := useTestConfig(t, "")
	seedResults(t, c.Store.DatabaseURL, 6, 4)

	out, err := execute(t, statusCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Errors:")
	assert.Contains(t, out, "(40.0%)")
	assert.Contains(t, out, "Alerts:")
}

func TestStatusCommand_JSON(t *testing.T) {
	c := useTestConfig(t, "")
	seedResults(t, c.Store.DatabaseURL, 3, 1)
	setFlags(t, statusCmd, map[string]string{"json": "true", "lookback": "1"})

	out, err := execute(t, statusCmd)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.EqualValues(t, 4, got["total"])
	assert.EqualValues(t, 1, got["lookback_hours"])
	assert.Nil(t, got["alerts"], "below min_samples")
}

func TestStatusCommand_InvalidConfig(t *testing.T) {
	c := useTestConfig(t, "")
	c.Monitoring.ErrorRateThreshold = 2

	_, err := execute(t, statusCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error_rate_threshold")
}
