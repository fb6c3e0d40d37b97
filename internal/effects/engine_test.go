package effects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/blinkd/internal/bridge"
	"github.com/dokzlo13/blinkd/internal/config"
	"github.com/dokzlo13/blinkd/internal/scheduler"
)

// fakeBridge records every call in order and serves canned light state.
type fakeBridge struct {
	mu       sync.Mutex
	events   []string
	scenes   int
	applyErr error
}

func (f *fakeBridge) record(ev string) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeBridge) LightState(ctx context.Context, id int) (bridge.State, error) {
	f.record(fmt.Sprintf("get:%d", id))
	on := true
	bri := uint8(200)
	return bridge.State{On: &on, Bri: &bri}, nil
}

func (f *fakeBridge) Apply(ctx context.Context, id int, state bridge.State) error {
	f.record(fmt.Sprintf("apply:%d", id))
	return f.applyErr
}

func (f *fakeBridge) SaveScene(ctx context.Context, name string, lights []int) (string, error) {
	f.mu.Lock()
	f.scenes++
	id := fmt.Sprintf("scene-%d", f.scenes)
	f.events = append(f.events, "save:"+id)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeBridge) RecallScene(ctx context.Context, sceneID string) error {
	f.record("recall:" + sceneID)
	return nil
}

func (f *fakeBridge) DeleteScene(ctx context.Context, sceneID string) error {
	f.record("delete:" + sceneID)
	return nil
}

func (f *fakeBridge) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeBridge) count(prefix string) int {
	n := 0
	for _, ev := range f.snapshot() {
		if len(ev) >= len(prefix) && ev[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func testConfig() *config.Config {
	on := true
	bri := uint8(200)
	return &config.Config{
		Hue: config.HueConfig{KelvinMin: 2000, KelvinMax: 6500},
		Fixtures: config.FixturesConfig{
			KeyLeft: 1, KeyRight: 2, StripLeft: 3, StripRight: 4, Back: 5,
		},
		Reset: map[string]config.InitialState{
			"key_left":   {On: &on, Bri: &bri, Kelvin: 4000},
			"strip_left": {On: &on, Bri: &bri, XY: []float32{0.4, 0.4}},
		},
		Effects: config.EffectsConfig{
			ColorTransition: config.Duration(time.Millisecond),
			RotateCycles:    2,
			FlashCycles:     2,
			WarmKelvin:      2700,
			CoolKelvin:      6000,
			RotateKelvin:    6500,
			AccentXY:        []float32{0.675, 0.322},
			AccentBri:       64,
		},
		Schemes: config.DefaultSchemes(),
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeBridge) {
	t.Helper()

	fb := &fakeBridge{}
	queue := scheduler.NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	go queue.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-queue.Stopped()
	})

	// 1000 rps keeps the pacing structure while the tests stay fast
	eng := NewEngine(fb, queue, &scheduler.Abort{}, scheduler.NewPacer(1000), nil, testConfig())
	return eng, fb
}

func TestSnapshotSaveIdempotent(t *testing.T) {
	fb := &fakeBridge{}
	store := NewSnapshotStore(fb)
	ctx := context.Background()

	if err := store.Save(ctx, []int{1, 2, 3}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, []int{1, 2, 3}); err != nil {
		t.Fatalf("second save: %v", err)
	}

	if fb.scenes != 1 {
		t.Fatalf("created %d scenes, want 1", fb.scenes)
	}
	if !store.Live() {
		t.Fatal("snapshot should be live")
	}
}

func TestSnapshotRestoreSingleUse(t *testing.T) {
	fb := &fakeBridge{}
	store := NewSnapshotStore(fb)
	ctx := context.Background()

	if err := store.Save(ctx, []int{1, 0, 3}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if store.Live() {
		t.Fatal("snapshot should be gone after restore")
	}
	if got := fb.count("recall:"); got != 1 {
		t.Fatalf("recall count = %d, want 1", got)
	}
	if got := fb.count("delete:"); got != 1 {
		t.Fatalf("delete count = %d, want 1", got)
	}

	// Restoring again is a no-op
	if err := store.Restore(ctx); err != nil {
		t.Fatalf("second restore: %v", err)
	}
	if got := fb.count("recall:"); got != 1 {
		t.Fatalf("second restore touched the bridge, recall count = %d", got)
	}
}

func TestEffectsRunFullyInOrder(t *testing.T) {
	eng, fb := newTestEngine(t)

	// Two triggers in quick succession: fully-A-then-fully-B, never interleaved
	first := eng.Subscribed("test", "alice")
	second := eng.Bits("test", "bob", 100)

	if err := <-first; err != nil {
		t.Fatalf("first effect: %v", err)
	}
	if err := <-second; err != nil {
		t.Fatalf("second effect: %v", err)
	}

	var boundaries []string
	for _, ev := range fb.snapshot() {
		if strings.HasPrefix(ev, "save:") || strings.HasPrefix(ev, "recall:") {
			boundaries = append(boundaries, ev)
		}
	}
	want := []string{"save:scene-1", "recall:scene-1", "save:scene-2", "recall:scene-2"}
	if len(boundaries) != len(want) {
		t.Fatalf("borrow windows = %v, want %v", boundaries, want)
	}
	for i := range want {
		if boundaries[i] != want[i] {
			t.Fatalf("borrow windows = %v, want %v", boundaries, want)
		}
	}
}

func TestCancelAllStopsRotatingEffect(t *testing.T) {
	eng, fb := newTestEngine(t)

	done := eng.Raid("test", "raider", 200) // many cycles

	// Let the effect get a few phases in
	deadline := time.Now().Add(2 * time.Second)
	for fb.count("apply:") < 5 {
		if time.Now().After(deadline) {
			t.Fatal("effect never started issuing commands")
		}
		time.Sleep(time.Millisecond)
	}

	eng.CancelAll()

	if err := <-done; !errors.Is(err, scheduler.ErrAborted) {
		t.Fatalf("raid result = %v, want %v", err, scheduler.ErrAborted)
	}

	// The queue keeps working right away
	if err := <-eng.StateDump("test", ""); err != nil {
		t.Fatalf("queue poisoned after cancel: %v", err)
	}
}

func TestGiftBatchSuppressesIndividualGifts(t *testing.T) {
	eng, _ := newTestEngine(t)

	if err := <-eng.GiftBatch("test", "alice", 2); err != nil {
		t.Fatalf("batch effect: %v", err)
	}

	// Both covered gifts come back immediately without playing anything
	if err := <-eng.GiftReceived("test", "alice", "bob"); err != nil {
		t.Fatalf("covered gift: %v", err)
	}
	if err := <-eng.GiftReceived("test", "alice", "carol"); err != nil {
		t.Fatalf("covered gift: %v", err)
	}

	// The third gift is standalone and plays the sub effect
	if err := <-eng.GiftReceived("test", "alice", "dave"); err != nil {
		t.Fatalf("standalone gift: %v", err)
	}
}

func TestColorDeferredWhileSnapshotLive(t *testing.T) {
	eng, fb := newTestEngine(t)
	ctx := context.Background()

	if err := eng.snaps.Save(ctx, eng.fx.ids()); err != nil {
		t.Fatalf("save: %v", err)
	}

	pair, ok := eng.resolver.Resolve("#00ff00")
	if !ok {
		t.Fatal("hex should resolve")
	}
	if err := eng.applyColor(ctx, pair); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := fb.count("apply:"); got != 0 {
		t.Fatalf("apply ran despite live snapshot, %d commands issued", got)
	}

	// Restore executes the parked application exactly once
	if err := eng.snaps.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := fb.count("apply:"); got == 0 {
		t.Fatal("deferred application never ran")
	}

	applied := fb.count("apply:")
	if err := eng.snaps.Restore(ctx); err != nil {
		t.Fatalf("second restore: %v", err)
	}
	if fb.count("apply:") != applied {
		t.Fatal("deferred application ran twice")
	}
}

func TestResetAppliesConfiguredFixtures(t *testing.T) {
	eng, fb := newTestEngine(t)

	if err := <-eng.Reset("test", ""); err != nil {
		t.Fatalf("reset: %v", err)
	}

	// key_left gets one command, strip_left two (effect clear first)
	if got := fb.count("apply:1"); got != 1 {
		t.Fatalf("key_left commands = %d, want 1", got)
	}
	if got := fb.count("apply:3"); got != 2 {
		t.Fatalf("strip_left commands = %d, want 2", got)
	}
	if fb.count("save:") != 0 {
		t.Fatal("reset must not snapshot")
	}
}
