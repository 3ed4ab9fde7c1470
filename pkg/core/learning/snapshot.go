package learning

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Snapshot is a deterministic serialization of the store's patterns.
// Merging snapshots sums counts, so periodic export/import under
// concurrent writers is commutative and associative: data is never lost,
// only possibly stale.
type Snapshot struct {
	ExportedAt time.Time `json:"exported_at"`
	Patterns   []Pattern `json:"patterns"`
}

// Export serializes all patterns, sorted by signature for determinism.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	patterns := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		patterns = append(patterns, clone(*p))
	}
	s.mu.RUnlock()

	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Signature < patterns[j].Signature
	})
	return json.MarshalIndent(Snapshot{ExportedAt: time.Now().UTC(), Patterns: patterns}, "", "  ")
}

// Import merges a snapshot into the store: counts are summed, the most
// recent LastUpdated wins, examples are unioned deterministically.
func (s *Store) Import(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode pattern snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range snap.Patterns {
		p, ok := s.patterns[in.Signature]
		if !ok {
			cp := clone(in)
			s.patterns[in.Signature] = &cp
			continue
		}
		p.Samples += in.Samples
		p.Successes += in.Successes
		p.Examples = mergeExamples(p.Examples, in.Examples)
		if in.LastUpdated.After(p.LastUpdated) {
			p.LastUpdated = in.LastUpdated
		}
	}
	s.logger.Info("imported pattern snapshot", "patterns", len(snap.Patterns))
	return nil
}
