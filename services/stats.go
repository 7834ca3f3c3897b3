package services

import (
	"fmt"
	"sort"
	"sync"
)

// Counter pairs create and update counts for one entity kind.
type Counter struct {
	Created int
	Updated int
}

// RegionStats are the counters for one region code.
type RegionStats struct {
	Games    Counter
	Prices   Counter
	Images   int
	Rejected int
}

// ItemOutcome is what ingesting a single item did, reported once per item.
type ItemOutcome struct {
	Region      string
	GameCreated bool
	GameUpdated bool
	PriceSaved  bool
	PriceNew    bool
	Images      int
	Rejected    bool
}

// StatsCollector aggregates outcomes per region. Only the pipeline writes
// to it, one Record call per finished item.
type StatsCollector struct {
	mu      sync.Mutex
	regions map[string]*RegionStats
}

func NewStatsCollector() *StatsCollector {
	return &StatsCollector{regions: make(map[string]*RegionStats)}
}

func (s *StatsCollector) Record(o ItemOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rs, ok := s.regions[o.Region]
	if !ok {
		rs = &RegionStats{}
		s.regions[o.Region] = rs
	}

	if o.Rejected {
		rs.Rejected++
		return
	}
	switch {
	case o.GameCreated:
		rs.Games.Created++
	case o.GameUpdated:
		rs.Games.Updated++
	}
	if o.PriceSaved {
		if o.PriceNew {
			rs.Prices.Created++
		} else {
			rs.Prices.Updated++
		}
	}
	rs.Images += o.Images
}

// Snapshot returns a copy of the counters keyed by region.
func (s *StatsCollector) Snapshot() map[string]RegionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]RegionStats, len(s.regions))
	for region, rs := range s.regions {
		out[region] = *rs
	}
	return out
}

// Summary renders one line per region in sorted order.
func (s *StatsCollector) Summary() []string {
	snapshot := s.Snapshot()
	regions := make([]string, 0, len(snapshot))
	for region := range snapshot {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	lines := make([]string, 0, len(regions))
	for _, region := range regions {
		rs := snapshot[region]
		lines = append(lines, fmt.Sprintf(
			"%s: games %d created / %d updated, prices %d created / %d updated, images %d, rejected %d",
			region, rs.Games.Created, rs.Games.Updated, rs.Prices.Created, rs.Prices.Updated, rs.Images, rs.Rejected,
		))
	}
	return lines
}
