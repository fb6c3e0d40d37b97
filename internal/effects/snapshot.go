package effects

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/blinkd/internal/bridge"
)

// Snapshot is one saved composite fixture state under a bridge-side handle.
type Snapshot struct {
	SceneID string
	Name    string
	Lights  []int
}

// SnapshotStore holds at most one live snapshot process-wide. Effects borrow
// fixture state through Save and hand it back through Restore; a color change
// arriving while a snapshot is live is parked in the deferred slot and runs
// right after the restore, so the restore cannot overwrite it.
type SnapshotStore struct {
	bridge bridge.Controller

	mu       sync.Mutex
	live     *Snapshot
	deferred func(ctx context.Context) error
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore(ctrl bridge.Controller) *SnapshotStore {
	return &SnapshotStore{bridge: ctrl}
}

// Save captures the current state of the given lights under a fresh scene
// name. Idempotent: with a snapshot already live it is a no-op, so two effects
// racing around the same borrow window can never leak a handle.
func (s *SnapshotStore) Save(ctx context.Context, lights []int) error {
	s.mu.Lock()
	if s.live != nil {
		s.mu.Unlock()
		log.Debug().Msg("Snapshot already live, save skipped")
		return nil
	}
	s.mu.Unlock()

	present := make([]int, 0, len(lights))
	for _, id := range lights {
		if id != 0 {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return fmt.Errorf("no fixtures to snapshot")
	}

	name := "blinkd-" + uuid.NewString()[:8]
	sceneID, err := s.bridge.SaveScene(ctx, name, present)
	if err != nil {
		return fmt.Errorf("snapshot save: %w", err)
	}

	s.mu.Lock()
	s.live = &Snapshot{SceneID: sceneID, Name: name, Lights: present}
	s.mu.Unlock()

	log.Debug().Str("scene", name).Ints("lights", present).Msg("Snapshot saved")
	return nil
}

// Restore applies the live snapshot, discards its single-use bridge copy,
// clears the live reference and runs any deferred color application exactly
// once. Without a live snapshot it is a no-op.
func (s *SnapshotStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	snap := s.live
	if snap == nil {
		s.mu.Unlock()
		return nil
	}
	s.live = nil
	deferred := s.deferred
	s.deferred = nil
	s.mu.Unlock()

	if err := s.bridge.RecallScene(ctx, snap.SceneID); err != nil {
		return fmt.Errorf("snapshot restore: %w", err)
	}
	if err := s.bridge.DeleteScene(ctx, snap.SceneID); err != nil {
		// The scene is recyclable, the bridge will reap it eventually
		log.Warn().Err(err).Str("scene", snap.Name).Msg("Failed to delete snapshot scene")
	}

	log.Debug().Str("scene", snap.Name).Msg("Snapshot restored")

	if deferred != nil {
		if err := deferred(ctx); err != nil {
			log.Warn().Err(err).Msg("Deferred color application failed")
		}
	}
	return nil
}

// Live reports whether a snapshot is currently held.
func (s *SnapshotStore) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live != nil
}

// Defer parks an application to run right after the next restore. A second
// registration in the same window replaces the first; the last command wins.
func (s *SnapshotStore) Defer(fn func(ctx context.Context) error) {
	s.mu.Lock()
	s.deferred = fn
	s.mu.Unlock()
}
