package inference

import (
	"context"
	"sort"
	"sync"

	"github.com/HarshSankhe/behavior-guard-insight/internal/pagination"
	"github.com/HarshSankhe/behavior-guard-insight/internal/scoring"
)

// MemoryStore is an in-memory implementation of Store. It is the default
// when no database is configured and backs the handler tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string][]*Assessment // userID -> assessments, oldest first
	total  int
}

// NewMemoryStore creates an in-memory assessment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser: make(map[string][]*Assessment),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Record(ctx context.Context, a *Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byUser[a.UserID] = append(s.byUser[a.UserID], copyAssessment(a))
	s.total++
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int, cursor *pagination.Cursor) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.byUser[userID]
	result := make([]*Assessment, 0, limit)
	// Most recent first; a cursor means "strictly older than this position".
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		a := all[i]
		if cursor != nil {
			if a.Timestamp.After(cursor.CreatedAt) {
				continue
			}
			if a.Timestamp.Equal(cursor.CreatedAt) && a.ID >= cursor.ID {
				continue
			}
		}
		result = append(result, copyAssessment(a))
	}
	return result, nil
}

func (s *MemoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID]), nil
}

func (s *MemoryStore) RecentHighRisk(ctx context.Context, limit int) ([]*Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Assessment
	for _, all := range s.byUser {
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].RiskScore >= HighRiskScore {
				result = append(result, copyAssessment(all[i]))
			}
		}
	}
	sortByTimestampDesc(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total, nil
}

// copyAssessment returns an independent copy so callers can't mutate
// stored state through shared maps or slices.
func copyAssessment(a *Assessment) *Assessment {
	out := *a
	out.Factors = make(map[string]scoring.Factor, len(a.Factors))
	for k, v := range a.Factors {
		out.Factors[k] = v
	}
	out.Details.Anomalies = append([]string(nil), a.Details.Anomalies...)
	return &out
}

func sortByTimestampDesc(list []*Assessment) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}
