package postgres

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/internal/report"
)

func testTable(t testing.TB) *report.Table {
	t.Helper()
	table, err := report.NewCodec().Decode(strings.NewReader(
		"Action,Ticker,Total,Notes\nMarket buy,VWCE.DE,100.5,\nMarket sell,AAPL,20,x\n"))
	require.NoError(t, err)
	return table.Normalize()
}

func TestRowSource(t *testing.T) {
	src := newRowSource("run-1", "2024-01", testTable(t))

	var got [][]interface{}
	for src.Next() {
		values, err := src.Values()
		require.NoError(t, err)
		got = append(got, values)
	}
	require.NoError(t, src.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "run-1", got[0][0])
	assert.Equal(t, "2024-01", got[0][1])
	assert.Equal(t, 0, got[0][2])
	assert.Equal(t, "Market buy", got[0][3])
	assert.Equal(t, "VWCE.DE", got[0][4])

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got[0][5].([]byte), &payload))
	assert.Equal(t, map[string]string{"Action": "Market buy", "Ticker": "VWCE.DE", "Total": "100.5"}, payload)

	assert.Equal(t, 1, got[1][2])
	assert.False(t, src.Next())
}

func setupTestDB(t testing.TB) *DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL não definido")
	}

	db, err := NewDB(&config.Config{
		DatabaseURL:         url,
		DatabaseMaxConns:    2,
		DatabaseMinConns:    1,
		DatabaseMaxConnLife: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(db.Close)
	return db
}

func TestRunRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repo := NewRunRepository(db.Pool())
	loader := NewBulkLoader(db.Pool())

	run := domain.RunRecord{
		ID:        uuid.NewString(),
		Month:     "1999-01",
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.StartRun(ctx, run))

	count, err := loader.LoadRows(ctx, run.ID, run.Month, testTable(t))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	finished := time.Now().UTC()
	run.Status = domain.RunSucceeded
	run.ReportID = 77
	run.RowsIn, run.RowsOut = 5, 2
	run.FinishedAt = &finished
	require.NoError(t, repo.FinishRun(ctx, run))

	runs, err := repo.ListRuns(ctx, domain.RunFilter{Month: "1999-01", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, domain.RunSucceeded, runs[0].Status)
	assert.Equal(t, domain.ReportID(77), runs[0].ReportID)

	_, err = db.Pool().Exec(ctx, "DELETE FROM pipeline_runs WHERE month = '1999-01'")
	require.NoError(t, err)
}
