package handlers

import (
	"sync"

	"go.uber.org/zap"

	"agriport/internal/logging"
	"agriport/internal/pipeline"
)

// DefaultResultCapacity is the number of runs kept in memory
const DefaultResultCapacity = 16

// ResultStore keeps the most recent run outputs in memory for export
type ResultStore struct {
	mu       sync.RWMutex
	results  map[string]*pipeline.Output
	order    []string
	capacity int
	logger   *zap.Logger
}

// NewResultStore creates a store holding up to capacity runs
func NewResultStore(capacity int, logger *zap.Logger) *ResultStore {
	if capacity <= 0 {
		capacity = DefaultResultCapacity
	}
	return &ResultStore{
		results:  make(map[string]*pipeline.Output),
		capacity: capacity,
		logger:   logging.OrNop(logger),
	}
}

// Save stores out, evicting the oldest run when full
func (s *ResultStore) Save(out *pipeline.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.results[out.RunID]; !exists {
		s.order = append(s.order, out.RunID)
	}
	s.results[out.RunID] = out

	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.results, oldest)
		s.logger.Debug("[SESSION] Evicted result", zap.String("run_id", oldest))
	}
	s.logger.Debug("[SESSION] Stored result", zap.String("run_id", out.RunID), zap.Int("stored", len(s.order)))
}

// Get returns the run with id, or nil
func (s *ResultStore) Get(id string) *pipeline.Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results[id]
}

// Latest returns the most recently saved run, or nil
func (s *ResultStore) Latest() *pipeline.Output {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return nil
	}
	return s.results[s.order[len(s.order)-1]]
}

// Len returns the number of stored runs
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// lookup returns the run with id, or the latest run when id is empty. A nil
// store holds no runs.
func (s *ResultStore) lookup(id string) *pipeline.Output {
	if s == nil {
		return nil
	}
	if id == "" {
		return s.Latest()
	}
	return s.Get(id)
}
