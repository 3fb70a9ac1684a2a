package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/dispatch"
	"github.com/Praises003/aether/internal/metrics"
)

// MemoryStore keeps results in a map. Entries older than the TTL are hidden
// from Get and removed by the sweeper.
type MemoryStore struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]Entry
	cron    *cron.Cron
}

// NewMemoryStore creates a store whose entries live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// StartSweeper removes expired entries on the given cron schedule
// (e.g. "@every 1m").
func (s *MemoryStore) StartSweeper(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("scheduling result sweeper: %w", err)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	log.Debug().Str("schedule", schedule).Dur("ttl", s.ttl).Msg("Result sweeper started")
	return nil
}

// Stop halts the sweeper and waits for a running sweep to finish.
func (s *MemoryStore) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *MemoryStore) Put(_ context.Context, jobID string, outcome dispatch.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[jobID] = Entry{
		JobID:      jobID,
		Outcome:    outcome,
		RecordedAt: s.now().UTC(),
	}
	metrics.SetResultsStored(len(s.entries))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[jobID]
	if !ok || s.expired(e) {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, jobID)
	metrics.SetResultsStored(len(s.entries))
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.entries {
		if s.expired(e) {
			delete(s.entries, id)
			removed++
		}
	}
	metrics.SetResultsStored(len(s.entries))

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Swept expired results")
	}
	return removed
}

// Len returns the number of entries held, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e Entry) bool {
	return s.ttl > 0 && s.now().Sub(e.RecordedAt) > s.ttl
}
