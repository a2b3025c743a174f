package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"fxcalc/internal/domain"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Testify mocks ---

type MockRateFeed struct{ mock.Mock }

func (m *MockRateFeed) Fetch(ctx context.Context) (domain.ImportBatch, error) {
	args := m.Called(ctx)
	b, _ := args.Get(0).(domain.ImportBatch)
	return b, args.Error(1)
}

type MockSnapshotArchive struct{ mock.Mock }

func (m *MockSnapshotArchive) Save(ctx context.Context, snap *domain.Snapshot, batch domain.ImportBatch) error {
	args := m.Called(ctx, snap, batch)
	return args.Error(0)
}

func (m *MockSnapshotArchive) Latest(ctx context.Context) (domain.ArchivedSnapshot, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(domain.ArchivedSnapshot)
	return a, args.Error(1)
}

func (m *MockSnapshotArchive) ByVersion(ctx context.Context, version uint64) (domain.ArchivedSnapshot, error) {
	args := m.Called(ctx, version)
	a, _ := args.Get(0).(domain.ArchivedSnapshot)
	return a, args.Error(1)
}

type MockRateChangePublisher struct{ mock.Mock }

func (m *MockRateChangePublisher) PublishRateChanges(ctx context.Context, changes []domain.RateChange) error {
	args := m.Called(ctx, changes)
	return args.Error(0)
}

func newTestService(feed *MockRateFeed, archive *MockSnapshotArchive, changes *MockRateChangePublisher) (*Service, *Repository) {
	repo := NewRepository()
	im := NewImporter(repo, "USD")
	// typed nil pointers must not end up inside the interfaces
	svc := &Service{repo: repo, importer: im}
	if feed != nil {
		svc.feed = feed
	}
	if archive != nil {
		svc.archive = archive
	}
	if changes != nil {
		svc.changes = changes
	}
	im.OnPublish(svc.notifyChanges)
	return svc, repo
}

// --- Refresh ---

func TestService_Refresh_ImportsAndArchives(t *testing.T) {
	feed := new(MockRateFeed)
	archive := new(MockSnapshotArchive)
	svc, repo := newTestService(feed, archive, nil)

	batch := batchOf(rec("USD", "EUR", "0.9"), rec("USD", "GBP", "0.8"))
	feed.On("Fetch", mock.Anything).Return(batch, nil).Once()
	archive.On("Save", mock.Anything, mock.AnythingOfType("*domain.Snapshot"), batch).Return(nil).Once()

	require.NoError(t, svc.Refresh(context.Background(), "exec-1"))

	cur, err := repo.Current()
	require.NoError(t, err)
	require.Equal(t, uint64(1), cur.Version())
	feed.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestService_Refresh_FetchError(t *testing.T) {
	feed := new(MockRateFeed)
	svc, repo := newTestService(feed, nil, nil)

	feed.On("Fetch", mock.Anything).Return(domain.ImportBatch{}, errors.New("upstream down")).Once()

	err := svc.Refresh(context.Background(), "exec-2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "upstream down")
	_, err = repo.Current()
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestService_Refresh_InvalidBatchIsNotArchived(t *testing.T) {
	feed := new(MockRateFeed)
	archive := new(MockSnapshotArchive)
	svc, _ := newTestService(feed, archive, nil)

	feed.On("Fetch", mock.Anything).Return(batchOf(rec("USD", "EUR", "0")), nil).Once()

	err := svc.Refresh(context.Background(), "exec-3")
	require.ErrorIs(t, err, domain.ErrInvalidRate)
	archive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Refresh_NoFeed(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	require.Error(t, svc.Refresh(context.Background(), "exec-4"))
}

func TestService_ImportBatch_ArchiveErrorDoesNotFailImport(t *testing.T) {
	archive := new(MockSnapshotArchive)
	svc, _ := newTestService(nil, archive, nil)

	archive.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db gone")).Once()

	snap, err := svc.ImportBatch(context.Background(), batchOf(rec("USD", "EUR", "0.9")))
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Version())
	archive.AssertExpectations(t)
}

// --- WarmStart ---

func TestService_WarmStart_RestoresLatest(t *testing.T) {
	archive := new(MockSnapshotArchive)
	svc, repo := newTestService(nil, archive, nil)

	archived := domain.ArchivedSnapshot{
		Version:    7,
		CapturedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Pivot:      "USD",
		Source:     "api",
		Records:    []domain.ImportRecord{rec("USD", "EUR", "0.9")},
	}
	archive.On("Latest", mock.Anything).Return(archived, nil).Once()

	require.NoError(t, svc.WarmStart(context.Background()))

	cur, err := repo.Current()
	require.NoError(t, err)
	require.Equal(t, uint64(7), cur.Version())
	require.True(t, cur.CapturedAt().Equal(archived.CapturedAt))
	archive.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_WarmStart_EmptyArchive(t *testing.T) {
	archive := new(MockSnapshotArchive)
	svc, repo := newTestService(nil, archive, nil)

	archive.On("Latest", mock.Anything).Return(domain.ArchivedSnapshot{}, domain.ErrSnapshotNotFound).Once()

	require.NoError(t, svc.WarmStart(context.Background()))
	_, err := repo.Current()
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func TestService_WarmStart_SkipsOtherPivot(t *testing.T) {
	archive := new(MockSnapshotArchive)
	svc, repo := newTestService(nil, archive, nil)

	archive.On("Latest", mock.Anything).Return(domain.ArchivedSnapshot{
		Version: 3, Pivot: "EUR", Records: []domain.ImportRecord{rec("EUR", "USD", "1.1")},
	}, nil).Once()

	require.NoError(t, svc.WarmStart(context.Background()))
	require.Zero(t, repo.Version())
}

func TestService_WarmStart_NoArchive(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	require.NoError(t, svc.WarmStart(context.Background()))
}

// --- Reads ---

func TestService_GetRate(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)

	_, err := svc.GetRate("USD", "EUR")
	require.ErrorIs(t, err, domain.ErrNotReady)

	_, err = svc.ImportBatch(context.Background(), batchOf(rec("USD", "EUR", "0.9"), rec("USD", "GBP", "0.8")))
	require.NoError(t, err)

	r, err := svc.GetRate("GBP", "EUR")
	require.NoError(t, err)
	require.Equal(t, "1.125", r.Value.String())
	require.Equal(t, uint64(1), r.Version)

	_, err = svc.GetRate("USD", "JPY")
	require.ErrorIs(t, err, domain.ErrRateNotFound)

	r, err = svc.GetRate("EUR", "EUR")
	require.NoError(t, err)
	require.Equal(t, "1", r.Value.String())

	_, err = svc.GetRate("ZZZ", "ZZZ")
	require.ErrorIs(t, err, domain.ErrRateNotFound)
}

func TestService_SupportedCodes(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	_, err := svc.SupportedCodes()
	require.ErrorIs(t, err, domain.ErrNotReady)

	_, err = svc.ImportBatch(context.Background(), batchOf(rec("USD", "JPY", "150"), rec("USD", "EUR", "0.9")))
	require.NoError(t, err)

	codes, err := svc.SupportedCodes()
	require.NoError(t, err)
	require.Equal(t, []domain.CurrencyCode{"EUR", "JPY", "USD"}, codes)
}

func TestService_ArchivedSnapshot_WithoutArchive(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	_, err := svc.ArchivedSnapshot(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

// --- Rate changes ---

func TestService_PublishesRateChangesAfterSecondImport(t *testing.T) {
	changes := new(MockRateChangePublisher)
	svc, _ := newTestService(nil, nil, changes)

	published := make(chan []domain.RateChange, 1)
	changes.On("PublishRateChanges", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published <- args.Get(1).([]domain.RateChange) }).
		Return(nil).Once()

	_, err := svc.ImportBatch(context.Background(), batchOf(rec("USD", "EUR", "0.9"), rec("USD", "GBP", "0.8")))
	require.NoError(t, err)
	_, err = svc.ImportBatch(context.Background(), batchOf(rec("USD", "EUR", "0.99"), rec("USD", "GBP", "0.8")))
	require.NoError(t, err)

	select {
	case got := <-published:
		require.Len(t, got, 1)
		require.Equal(t, domain.CurrencyCode("EUR"), got[0].Quote)
		require.Equal(t, "10", got[0].ChangePercent.String())
		require.Equal(t, uint64(2), got[0].Version)
	case <-time.After(2 * time.Second):
		t.Fatal("rate changes were not published")
	}
}
