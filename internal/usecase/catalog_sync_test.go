package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContractsOrchestrator/internal/domain"
	"ContractsOrchestrator/internal/logging"
)

func fixedSync(catalog *fakeCatalog, contracts *memoryContracts) *CatalogSync {
	s := NewCatalogSync(catalog, contracts, logging.Discard())
	s.now = func() time.Time { return time.Date(2025, 3, 31, 15, 0, 0, 0, time.UTC) }
	return s
}

func TestSyncQueryDefaults(t *testing.T) {
	s := fixedSync(&fakeCatalog{}, &memoryContracts{})

	q, err := s.Query(SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02", q.PostedFrom.Format(time.DateOnly))
	assert.Equal(t, "2025-03-31", q.PostedTo.Format(time.DateOnly))
	assert.Equal(t, 50, q.Limit)
	assert.Equal(t, 0, q.Offset)
}

func TestSyncQueryClamps(t *testing.T) {
	s := fixedSync(&fakeCatalog{}, &memoryContracts{})

	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, -5, 1, 0},
		{5000, 10, 1000, 10},
		{25, 0, 25, 0},
	}
	for _, tc := range cases {
		q, err := s.Query(SyncRequest{Limit: ptr(tc.limit), Offset: ptr(tc.offset)})
		require.NoError(t, err)
		assert.Equal(t, tc.wantLimit, q.Limit)
		assert.Equal(t, tc.wantOffset, q.Offset)
	}
}

func TestSyncQueryDates(t *testing.T) {
	s := fixedSync(&fakeCatalog{}, &memoryContracts{})

	q, err := s.Query(SyncRequest{PostedFrom: "01/15/2025", PostedTo: "2025-02-01", Keywords: "paving", NAICS: "238990", State: "UT"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), q.PostedFrom)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), q.PostedTo)
	assert.Equal(t, "paving", q.Keywords)
	assert.Equal(t, "238990", q.NAICS)
	assert.Equal(t, "UT", q.State)

	_, err = s.Query(SyncRequest{PostedFrom: "yesterday"})
	assert.Equal(t, http.StatusUnprocessableEntity, domain.StatusOf(err))
}

func TestSyncRunUpsertsNoticesWithIDs(t *testing.T) {
	catalog := &fakeCatalog{page: domain.CatalogPage{
		Total: 7,
		Notices: []domain.Notice{
			{NoticeID: ptr("N1"), Title: ptr("Runway"), Dates: domain.NoticeDates{Posted: ptr("2025-03-01")}},
			{Title: ptr("no id")},
		},
	}}
	contracts := &memoryContracts{}
	s := fixedSync(catalog, contracts)

	res, err := s.Run(context.Background(), SyncRequest{Limit: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Total)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 2, catalog.query.Limit)

	require.Len(t, contracts.upserted, 1)
	require.Len(t, contracts.upserted[0], 1)
	row := contracts.upserted[0][0]
	assert.Equal(t, "N1", row.NoticeID)
	require.NotNil(t, row.PostedAt)
	assert.Equal(t, "2025-03-01", row.PostedAt.Format(time.DateOnly))
}

func TestSyncRunEmptyPage(t *testing.T) {
	contracts := &memoryContracts{}
	res, err := fixedSync(&fakeCatalog{}, contracts).Run(context.Background(), SyncRequest{})
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Empty(t, contracts.upserted)
}

func TestSyncRunErrors(t *testing.T) {
	_, err := NewCatalogSync(nil, &memoryContracts{}, nil).Run(context.Background(), SyncRequest{})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	upstream := &domain.UpstreamError{Service: "SAM.gov", Status: http.StatusTooManyRequests, Body: "slow down"}
	_, err = fixedSync(&fakeCatalog{err: upstream}, &memoryContracts{}).Run(context.Background(), SyncRequest{})
	assert.Equal(t, http.StatusTooManyRequests, domain.StatusOf(err))

	catalog := &fakeCatalog{page: domain.CatalogPage{Notices: []domain.Notice{{NoticeID: ptr("N1")}}}}
	_, err = fixedSync(catalog, &memoryContracts{upsertErr: domain.ErrPersistence}).Run(context.Background(), SyncRequest{})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
