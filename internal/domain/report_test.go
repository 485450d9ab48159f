package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthRange(t *testing.T) {
	tests := []struct {
		month string
		from  string
		to    string
	}{
		{"2024-01", "2024-01-01", "2024-02-01"},
		{"2024-02", "2024-02-01", "2024-03-01"},
		{"2023-12", "2023-12-01", "2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			r, err := MonthRange(tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.from, r.From().Format(time.DateOnly))
			assert.Equal(t, tt.to, r.To().Format(time.DateOnly))
			assert.Equal(t, tt.month, r.Month())
		})
	}
}

func TestMonthRange_Invalid(t *testing.T) {
	for _, month := range []string{"", "2024", "2024-13", "01-2024", "2024-01-15"} {
		_, err := MonthRange(month)
		assert.ErrorIs(t, err, ErrInvalidMonth, month)
	}
}

func TestNewDateRange_RequiresToAfterFrom(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewDateRange(day, day)
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = NewDateRange(day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	r, err := NewDateRange(day, day.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01..2024-05-11", r.String())
}

func TestPreviousMonth(t *testing.T) {
	assert.Equal(t, "2024-12", PreviousMonth(time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02", PreviousMonth(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)))
}

func TestReportStatus(t *testing.T) {
	assert.True(t, StatusFinished.IsFinished())
	assert.False(t, StatusRunning.IsFinished())
	assert.True(t, StatusFailed.IsFailed())
	assert.True(t, StatusCanceled.IsFailed())

	unknown := ReportStatus("Archived")
	assert.False(t, unknown.IsFinished())
	assert.False(t, unknown.IsFailed())
}

func TestFindLatest(t *testing.T) {
	entries := []ReportStatusEntry{
		{ReportID: 7, Status: StatusQueued},
		{ReportID: 8, Status: StatusFinished},
		{ReportID: 7, Status: StatusFinished, DownloadLink: "https://example.com/7.csv"},
		{ReportID: 9, Status: StatusProcessing},
	}

	got, ok := FindLatest(entries, 7)
	require.True(t, ok)
	assert.Equal(t, StatusFinished, got.Status)
	assert.Equal(t, "https://example.com/7.csv", got.DownloadLink)

	_, ok = FindLatest(entries, 42)
	assert.False(t, ok)

	_, ok = FindLatest(nil, 7)
	assert.False(t, ok)
}
