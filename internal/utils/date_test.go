package util_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	util "github.com/saulo-duarte/okr-progress/internal/utils"
)

func TestDateJSON(t *testing.T) {
	var payload struct {
		Deadline util.Date  `json:"deadline"`
		Optional *util.Date `json:"optional"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2026-03-01","optional":null}`), &payload))
	assert.Equal(t, util.NewDate(2026, time.March, 1), payload.Deadline)
	assert.Nil(t, payload.Optional)

	out, err := json.Marshal(payload.Deadline)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-03-01"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"deadline":"01/03/2026"}`), &payload))
}

func TestDateScan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"Time", time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)},
		{"PlainString", "2026-06-01"},
		{"SQLiteTimestamp", "2026-06-01 00:00:00+00:00"},
		{"Bytes", []byte("2026-06-01T00:00:00Z")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d util.Date
			require.NoError(t, d.Scan(tt.value))
			assert.Equal(t, "2026-06-01", d.String())
		})
	}

	var d util.Date
	assert.Error(t, d.Scan(42))
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
}

func TestDateArithmetic(t *testing.T) {
	today := util.MustParseDate("2026-10-18")

	assert.Equal(t, 5, today.DaysUntil(today.AddDays(5)))
	assert.Equal(t, -3, today.DaysUntil(today.AddDays(-3)))
	assert.True(t, today.AddDays(1).After(today))
	assert.True(t, today.Before(today.AddDays(1)))
	assert.Equal(t, today, util.DateOf(time.Date(2026, time.October, 18, 23, 59, 0, 0, time.UTC)))
}
