package services

import (
	"context"
	"diffly_crawler/api/health"
	"diffly_crawler/structs"
	"errors"
	"sync"

	"github.com/MonkyMars/gecho"
)

var ErrPipelineClosed = errors.New("pipeline is closed")

const (
	defaultQueueSize = 64
	defaultWorkers   = 4
)

// Pipeline feeds catalog items to a fixed pool of ingest workers through a
// bounded queue. Submit blocks while the queue is full.
type Pipeline struct {
	logger *gecho.Logger
	ingest *IngestService
	store  CatalogStore
	stats  *StatsCollector

	queue chan structs.CatalogItem
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	fatalMu sync.Mutex
	fatal   error
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewPipeline starts the workers. They stop when Close is called or ctx ends.
func NewPipeline(ctx context.Context, logger *gecho.Logger, ingest *IngestService, store CatalogStore, stats *StatsCollector, queueSize, workers int) *Pipeline {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if workers <= 0 {
		workers = defaultWorkers
	}
	if stats == nil {
		stats = NewStatsCollector()
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		logger: logger,
		ingest: ingest,
		store:  store,
		stats:  stats,
		queue:  make(chan structs.CatalogItem, queueSize),
		cancel: cancel,
	}

	p.wg.Add(workers)
	for range workers {
		go p.work(ctx)
	}
	return p
}

func (p *Pipeline) work(ctx context.Context) {
	defer p.wg.Done()

	for item := range p.queue {
		health.QueueDepth.Set(float64(len(p.queue)))
		if p.Err() != nil {
			// drain without writing once the run is doomed
			continue
		}

		outcome, err := p.ingest.Ingest(ctx, item)
		if err != nil {
			if IsFatal(err) {
				p.fail(err)
				continue
			}
			p.logger.Error("Failed to ingest item",
				gecho.Field("product_id", item.ProductID),
				gecho.Field("region", item.Region),
				gecho.Field("error", err),
			)
			continue
		}
		p.stats.Record(outcome)
	}
}

func (p *Pipeline) fail(err error) {
	p.fatalMu.Lock()
	defer p.fatalMu.Unlock()
	if p.fatal != nil {
		return
	}
	p.fatal = err
	p.logger.Error("Ingestion aborted", gecho.Field("error", err))
}

// Err returns the fatal error that stopped ingestion, if any.
func (p *Pipeline) Err() error {
	p.fatalMu.Lock()
	defer p.fatalMu.Unlock()
	return p.fatal
}

// Submit enqueues an item, blocking while the queue is full. It satisfies
// the scraper's emit callback.
func (p *Pipeline) Submit(ctx context.Context, item structs.CatalogItem) error {
	if err := p.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPipelineClosed
	}

	select {
	case p.queue <- item:
		health.QueueDepth.Set(float64(len(p.queue)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake, waits for queued items to finish, closes the store once
// and logs the per-region summary. It is safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		p.wg.Wait()
		p.cancel()
		health.QueueDepth.Set(0)

		if err := p.store.Close(); err != nil {
			p.logger.Warn("Failed to close catalog store", gecho.Field("error", err))
		}

		for _, line := range p.stats.Summary() {
			p.logger.Info(line)
		}
		p.closeErr = p.Err()
	})
	return p.closeErr
}

// Stats returns the collector the workers record into.
func (p *Pipeline) Stats() *StatsCollector {
	return p.stats
}
