package services

import (
	"context"
	"diffly_crawler/lib"
	"diffly_crawler/structs"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MonkyMars/gecho"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_ConcurrentRegionsShareOneGame(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCatalogStore().Seed("Xbox")
	pipeline := NewPipeline(ctx, gecho.NewDefaultLogger(), newTestIngest(t, store), store, nil, 8, 4)

	var wg sync.WaitGroup
	for _, region := range []string{"en-US", "tr-TR", "en-GB", "de-DE"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				assert.NoError(t, pipeline.Submit(ctx, sampleItem(region)))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, pipeline.Close())

	counts := store.Counts()
	assert.Equal(t, 1, counts["games"])
	assert.Equal(t, 1, counts["game_platforms"])
	assert.Equal(t, 4, counts["stores"])
	assert.Equal(t, 4, counts["prices"])
	assert.Equal(t, 1, store.CloseCalls())

	snapshot := pipeline.Stats().Snapshot()
	total := 0
	for _, region := range []string{"US", "TR", "GB", "DE"} {
		rs := snapshot[region]
		assert.Equal(t, 5, rs.Prices.Created+rs.Prices.Updated, region)
		assert.Equal(t, 1, rs.Prices.Created, region)
		total += rs.Games.Created
	}
	assert.Equal(t, 1, total)
}

func TestPipeline_CountsRejectedItems(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCatalogStore().Seed("Xbox")
	pipeline := NewPipeline(ctx, gecho.NewDefaultLogger(), newTestIngest(t, store), store, nil, 0, 0)

	require.NoError(t, pipeline.Submit(ctx, sampleItem("nl-NL")))
	require.NoError(t, pipeline.Submit(ctx, sampleItem("en-US")))
	require.NoError(t, pipeline.Close())

	snapshot := pipeline.Stats().Snapshot()
	assert.Equal(t, 1, snapshot["nl-NL"].Rejected)
	assert.Equal(t, 1, snapshot["US"].Games.Created)
}

func TestPipeline_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCatalogStore().Seed("Xbox")
	pipeline := NewPipeline(ctx, gecho.NewDefaultLogger(), newTestIngest(t, store), store, nil, 1, 1)

	require.NoError(t, pipeline.Close())
	require.NoError(t, pipeline.Close())
	assert.Equal(t, 1, store.CloseCalls())
	assert.ErrorIs(t, pipeline.Submit(ctx, sampleItem("en-US")), ErrPipelineClosed)
}

// blockingStore parks every game write until release is closed.
type blockingStore struct {
	*MemoryCatalogStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) GetOrCreateGame(ctx context.Context, productID string) (uuid.UUID, bool, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.MemoryCatalogStore.GetOrCreateGame(ctx, productID)
}

func TestPipeline_SubmitBlocksWhenQueueIsFull(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{
		MemoryCatalogStore: NewMemoryCatalogStore().Seed("Xbox"),
		started:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	pipeline := NewPipeline(ctx, gecho.NewDefaultLogger(), newTestIngest(t, store), store, nil, 1, 1)

	item := func(i int) structs.CatalogItem {
		it := sampleItem("en-US")
		it.ProductID = fmt.Sprintf("PRODUCT%02d", i)
		return it
	}

	require.NoError(t, pipeline.Submit(ctx, item(1)))
	<-store.started
	require.NoError(t, pipeline.Submit(ctx, item(2)))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pipeline.Submit(short, item(3)), context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, pipeline.Close())
	assert.Equal(t, 2, store.Counts()["games"])
}

func TestPipeline_MissingPlatformStopsIntake(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCatalogStore()
	ingest := NewIngestService(gecho.NewDefaultLogger(), store, lib.NewFixedClock(processingTime), nil)
	require.Error(t, ingest.Prepare(ctx))

	pipeline := NewPipeline(ctx, gecho.NewDefaultLogger(), ingest, store, nil, 4, 1)
	require.NoError(t, pipeline.Submit(ctx, sampleItem("en-US")))

	require.Eventually(t, func() bool {
		return pipeline.Err() != nil
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, pipeline.Submit(ctx, sampleItem("en-US")), lib.ErrPlatformNotFound)

	err := pipeline.Close()
	assert.ErrorIs(t, err, lib.ErrPlatformNotFound)
	assert.Equal(t, 1, store.CloseCalls())
}
