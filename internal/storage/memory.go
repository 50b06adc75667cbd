// Package storage - memory.go provides an in-process Repository used by
// tests and by operators running without a configured database_url.
package storage

import (
	"context"
	"sync"
)

// MemoryStore is a Repository backed by plain slices/maps, guarded by a
// single mutex — adequate for the engine's single-writer access pattern.
type MemoryStore struct {
	mu sync.Mutex

	decisions      []DecisionRecord
	fills          []FillRecord
	rejections     []RejectionRecord
	regimeHistory  []RegimeHistoryRecord
	snapshots      []SnapshotRecord
	learningStates []LearningStateRecord
}

// NewMemoryStore creates an empty in-process Repository.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LogDecision(_ context.Context, rec DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, rec)
	return nil
}

func (m *MemoryStore) LogFill(_ context.Context, rec FillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fills = append(m.fills, rec)
	return nil
}

func (m *MemoryStore) LogRejection(_ context.Context, rec RejectionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, rec)
	return nil
}

func (m *MemoryStore) LogRegimeChange(_ context.Context, rec RegimeHistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regimeHistory = append(m.regimeHistory, rec)
	return nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, rec SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, rec)
	return nil
}

func (m *MemoryStore) SaveLearningState(_ context.Context, rec LearningStateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learningStates = append(m.learningStates, rec)
	return nil
}

func (m *MemoryStore) LatestLearningState(_ context.Context) (map[string]float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.learningStates) == 0 {
		return nil, 0, nil
	}
	last := m.learningStates[len(m.learningStates)-1]
	weights, err := decodeWeights(last.WeightsJSON)
	if err != nil {
		return nil, 0, err
	}
	return weights, last.UpdateCount, nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Decisions returns a copy of every logged decision, for tests.
func (m *MemoryStore) Decisions() []DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DecisionRecord, len(m.decisions))
	copy(out, m.decisions)
	return out
}

// Fills returns a copy of every logged fill, for tests.
func (m *MemoryStore) Fills() []FillRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FillRecord, len(m.fills))
	copy(out, m.fills)
	return out
}

// Rejections returns a copy of every logged rejection, for tests.
func (m *MemoryStore) Rejections() []RejectionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RejectionRecord, len(m.rejections))
	copy(out, m.rejections)
	return out
}

// Snapshots returns a copy of every saved snapshot, for tests.
func (m *MemoryStore) Snapshots() []SnapshotRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SnapshotRecord, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}
