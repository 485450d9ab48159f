package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/t212-digrin/internal/acquisition"
	"github.com/jeovahfialho/t212-digrin/internal/config"
	"github.com/jeovahfialho/t212-digrin/internal/domain"
	"github.com/jeovahfialho/t212-digrin/internal/report"
)

const rawReport = "Action,Ticker,Total\nMarket buy,VWCE,100.5\nDividend,AAPL,1.2\nMarket sell,BRK.A,10\n"

type fakeAcquirer struct {
	calls  int
	ranges []domain.DateRange
	data   []byte
	err    error
}

func (f *fakeAcquirer) Acquire(ctx context.Context, r domain.DateRange) (*acquisition.Result, error) {
	f.calls++
	f.ranges = append(f.ranges, r)
	if f.err != nil {
		return nil, f.err
	}
	return &acquisition.Result{
		Entry: domain.ReportStatusEntry{ReportID: 42, Status: domain.StatusFinished},
		Data:  f.data,
	}, nil
}

type memStore struct {
	objects map[string][]byte
	putErr  map[string]error
	ttl     time.Duration
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, putErr: map[string]error{}}
}

func (s *memStore) Put(ctx context.Context, bucket, key string, data []byte) error {
	if err := s.putErr[key]; err != nil {
		return err
	}
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *memStore) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	s.ttl = ttl
	return "https://" + bucket + ".example/" + key + "?sig=1", nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	args := m.Called(ctx, recipient, subject, htmlBody)
	return args.Error(0)
}

type recordingHistory struct {
	started  []domain.RunRecord
	finished []domain.RunRecord
}

func (h *recordingHistory) StartRun(ctx context.Context, run domain.RunRecord) error {
	h.started = append(h.started, run)
	return nil
}

func (h *recordingHistory) FinishRun(ctx context.Context, run domain.RunRecord) error {
	h.finished = append(h.finished, run)
	return nil
}

type countingArchive struct {
	rows int
}

func (a *countingArchive) LoadRows(ctx context.Context, runID, month string, table *report.Table) (int64, error) {
	a.rows += len(table.Rows)
	return int64(len(table.Rows)), nil
}

func testConfig() *config.Config {
	return &config.Config{
		BucketName:        "reports",
		RawPrefix:         "t212",
		TransformedPrefix: "digrin",
		PresignTTL:        5 * time.Minute,
		Email:             "me@example.com",
		EmailSubject:      "T212 to Digrin",
	}
}

func TestPipeline_Run(t *testing.T) {
	acq := &fakeAcquirer{data: []byte(rawReport)}
	store := newMemStore()
	notifier := new(mockNotifier)
	history := &recordingHistory{}
	archive := &countingArchive{}

	notifier.On("Send", mock.Anything, "me@example.com", "T212 to Digrin",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, `<a href="https://reports.example/digrin/2024-01.csv?sig=1">ready</a>`)
		})).Return(nil).Once()

	p := NewPipeline(testConfig(), acq, store, notifier, WithHistory(history), WithArchive(archive))

	res, err := p.Run(context.Background(), "2024-01")
	require.NoError(t, err)

	assert.Equal(t, "t212/2024-01.csv", res.RawKey)
	assert.Equal(t, "digrin/2024-01.csv", res.TransformedKey)
	assert.Equal(t, domain.ReportID(42), res.ReportID)
	assert.Equal(t, 3, res.RowsIn)
	assert.Equal(t, 1, res.RowsOut)
	assert.Equal(t, int64(1), res.Archived)

	require.Len(t, acq.ranges, 1)
	assert.Equal(t, "2024-01-01..2024-02-01", acq.ranges[0].String())

	assert.Equal(t, rawReport, string(store.objects["reports/t212/2024-01.csv"]))
	assert.Equal(t, "Action,Ticker,Total\nMarket buy,VWCE.DE,100.5\n", string(store.objects["reports/digrin/2024-01.csv"]))
	assert.Equal(t, 5*time.Minute, store.ttl)

	require.Len(t, history.started, 1)
	require.Len(t, history.finished, 1)
	assert.Equal(t, res.RunID, history.finished[0].ID)
	assert.Equal(t, domain.RunSucceeded, history.finished[0].Status)
	assert.NotNil(t, history.finished[0].FinishedAt)
	assert.Equal(t, 1, archive.rows)

	notifier.AssertExpectations(t)
}

func TestPipeline_InvalidMonth(t *testing.T) {
	acq := &fakeAcquirer{}
	p := NewPipeline(testConfig(), acq, newMemStore(), new(mockNotifier))

	_, err := p.Run(context.Background(), "2024-13")
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
	assert.Zero(t, acq.calls)
}

func TestPipeline_AcquireErrorIsFatal(t *testing.T) {
	acq := &fakeAcquirer{err: acquisition.ErrAcquisitionTimedOut}
	store := newMemStore()
	history := &recordingHistory{}
	notifier := new(mockNotifier)

	p := NewPipeline(testConfig(), acq, store, notifier, WithHistory(history))

	_, err := p.Run(context.Background(), "2024-01")
	assert.ErrorIs(t, err, acquisition.ErrAcquisitionTimedOut)
	assert.Empty(t, store.objects)

	require.Len(t, history.finished, 1)
	assert.Equal(t, domain.RunFailed, history.finished[0].Status)
	assert.NotEmpty(t, history.finished[0].Error)
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_StorageErrorKeepsWrittenArtifacts(t *testing.T) {
	boom := errors.New("bucket indisponível")
	store := newMemStore()
	store.putErr["digrin/2024-01.csv"] = boom
	notifier := new(mockNotifier)

	p := NewPipeline(testConfig(), &fakeAcquirer{data: []byte(rawReport)}, store, notifier)

	_, err := p.Run(context.Background(), "2024-01")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, store.objects, "reports/t212/2024-01.csv")
	assert.NotContains(t, store.objects, "reports/digrin/2024-01.csv")
	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_NotifyErrorIsFatal(t *testing.T) {
	boom := errors.New("smtp fora do ar")
	notifier := new(mockNotifier)
	notifier.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)

	p := NewPipeline(testConfig(), &fakeAcquirer{data: []byte(rawReport)}, newMemStore(), notifier)

	_, err := p.Run(context.Background(), "2024-01")
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_UsesConfiguredRecipientAndTickers(t *testing.T) {
	cfg := testConfig()
	cfg.EmailRecipient = "other@example.com"
	cfg.ExtraTickerMap = map[string]string{"VWCE": "VWCE.MI"}

	store := newMemStore()
	notifier := new(mockNotifier)
	notifier.On("Send", mock.Anything, "other@example.com", mock.Anything, mock.Anything).Return(nil)

	p := NewPipeline(cfg, &fakeAcquirer{data: []byte(rawReport)}, store, notifier)

	_, err := p.Run(context.Background(), "2024-01")
	require.NoError(t, err)
	assert.Equal(t, "Action,Ticker,Total\nMarket buy,VWCE.MI,100.5\n", string(store.objects["reports/digrin/2024-01.csv"]))
	notifier.AssertExpectations(t)
}

func TestPipeline_Transform(t *testing.T) {
	p := NewPipeline(testConfig(), &fakeAcquirer{}, newMemStore(), new(mockNotifier))

	out, res, err := p.Transform([]byte(rawReport))
	require.NoError(t, err)
	assert.Equal(t, "Action,Ticker,Total\nMarket buy,VWCE.DE,100.5\n", string(out))
	assert.Equal(t, 3, res.RowsIn)
	assert.Equal(t, 1, res.RowsOut)

	_, _, err = p.Transform([]byte("Foo\nbar\n"))
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "t212/2024-05.csv", ObjectKey("t212", "2024-05"))
	assert.Equal(t, "digrin/2024-05.csv", ObjectKey("digrin/", "2024-05"))
}
