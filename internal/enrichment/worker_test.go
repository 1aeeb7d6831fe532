package enrichment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/order-sync-api/internal/docstore"
	"github.com/printops/order-sync-api/internal/models"
	"github.com/printops/order-sync-api/internal/repository"
	"github.com/printops/order-sync-api/pkg/logger"
)

type stubDetailSource struct {
	totals map[string]int
	errs   map[string]error
	calls  []string
}

func (s *stubDetailSource) GetSaleDetail(ctx context.Context, saleID string) (int, error) {
	s.calls = append(s.calls, saleID)
	if err, ok := s.errs[saleID]; ok {
		return 0, err
	}
	return s.totals[saleID], nil
}

func seedFlaggedOrders(t *testing.T, store *docstore.MemoryStore, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		num := fmt.Sprintf("%04d", 1000+i)
		order := &models.Order{
			OrderNumber:      num,
			SaleID:           "sale-" + num,
			Customer:         "Acme",
			OrderDate:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Status:           "PACKED",
			IsActive:         true,
			NeedsDetailFetch: true,
			LastUpdated:      time.Now().UTC(),
		}
		doc, err := order.ToDocument()
		require.NoError(t, err)
		require.NoError(t, store.Set(context.Background(), docstore.CollectionOrders, num, doc))
	}
}

func newTestWorker(source DetailSource, store *docstore.MemoryStore, batchSize int) *Worker {
	repo := repository.NewOrderRepository(store, logger.NewNop())
	return NewWorker(source, repo, Config{
		Interval:   time.Minute,
		BatchSize:  batchSize,
		MinSpacing: 0,
	}, logger.NewNop())
}

func countFlagged(t *testing.T, store *docstore.MemoryStore) int {
	t.Helper()

	docs, err := store.Query(context.Background(), docstore.CollectionOrders, &docstore.Filter{
		Field: "needs_detail_fetch",
		Value: true,
	})
	require.NoError(t, err)
	return len(docs)
}

func TestProcessBatchEnrichesAndClearsFlag(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedFlaggedOrders(t, store, 3)
	source := &stubDetailSource{totals: map[string]int{
		"sale-1000": 12,
		"sale-1001": 0,
		"sale-1002": 150,
	}}
	w := newTestWorker(source, store, 60)

	processed, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Equal(t, 0, countFlagged(t, store))

	doc, err := store.Get(context.Background(), docstore.CollectionOrders, "1002")
	require.NoError(t, err)
	assert.Equal(t, 150, doc["total_quantity"])
	assert.Equal(t, false, doc["needs_detail_fetch"])

	// A zero aggregate still clears the flag
	doc, err = store.Get(context.Background(), docstore.CollectionOrders, "1001")
	require.NoError(t, err)
	assert.Equal(t, 0, doc["total_quantity"])
	assert.Equal(t, false, doc["needs_detail_fetch"])
}

func TestProcessBatchHonorsCap(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedFlaggedOrders(t, store, 150)
	source := &stubDetailSource{totals: map[string]int{}}
	w := newTestWorker(source, store, 60)

	processed, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 60, processed)
	assert.Len(t, source.calls, 60)
	assert.Equal(t, 90, countFlagged(t, store))

	// The next invocation picks up where the cap cut off
	processed, err = w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, processed)
	assert.Equal(t, 30, countFlagged(t, store))
}

func TestProcessBatchFailedFetchKeepsFlag(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedFlaggedOrders(t, store, 3)
	source := &stubDetailSource{
		totals: map[string]int{"sale-1000": 5, "sale-1002": 9},
		errs:   map[string]error{"sale-1001": errors.New("upstream 500")},
	}
	w := newTestWorker(source, store, 60)

	processed, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, processed)
	assert.Equal(t, 1, countFlagged(t, store))

	doc, err := store.Get(context.Background(), docstore.CollectionOrders, "1001")
	require.NoError(t, err)
	assert.Equal(t, true, doc["needs_detail_fetch"])
	_, hasTotal := doc["total_quantity"]
	assert.False(t, hasTotal)
}

func TestProcessBatchSkipsOrdersWithoutSaleID(t *testing.T) {
	store := docstore.NewMemoryStore()
	order := &models.Order{
		OrderNumber:      "Printavo-77",
		Customer:         "Beta Shirts",
		Status:           "Pending",
		IsActive:         true,
		NeedsDetailFetch: true,
		LastUpdated:      time.Now().UTC(),
	}
	doc, err := order.ToDocument()
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), docstore.CollectionOrders, order.OrderNumber, doc))

	source := &stubDetailSource{}
	w := newTestWorker(source, store, 60)

	processed, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, processed)
	assert.Empty(t, source.calls)
}

func TestProcessBatchStopsWhenCircuitOpens(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedFlaggedOrders(t, store, 10)
	source := &stubDetailSource{errs: map[string]error{}}
	for i := 0; i < 10; i++ {
		source.errs[fmt.Sprintf("sale-%04d", 1000+i)] = errors.New("upstream 500")
	}
	w := newTestWorker(source, store, 60)

	fetches := 0
	w.OnFetch(func(ok bool) {
		fetches++
		assert.False(t, ok)
	})

	processed, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	// The breaker trips after five consecutive failures and defers the rest
	assert.Equal(t, 0, processed)
	assert.Equal(t, 5, fetches)
	assert.Equal(t, 10, countFlagged(t, store))
}

func TestProcessBatchRespectsContextCancellation(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedFlaggedOrders(t, store, 5)
	source := &stubDetailSource{totals: map[string]int{}}
	w := newTestWorker(source, store, 60)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.ProcessBatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
