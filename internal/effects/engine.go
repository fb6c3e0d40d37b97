// Package effects implements the serialized light effect engine: the four
// effect sequences, the scene snapshot store, the color command resolver and
// the gift-sub deduplication counter.
package effects

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/blinkd/internal/bridge"
	"github.com/dokzlo13/blinkd/internal/config"
	"github.com/dokzlo13/blinkd/internal/scheduler"
)

// Fixture is one controllable light slot. A zero ID marks the slot absent;
// commands to it become pure delays so effect timing stays consistent.
type Fixture struct {
	Slot  string
	ID    int
	Color bool
}

// Fixtures is the fixed fixture set the effects play across.
type Fixtures struct {
	KeyLeft    Fixture
	KeyRight   Fixture
	StripLeft  Fixture
	StripRight Fixture
	Back       Fixture
}

// All returns the fixtures in the self-test blink order.
func (f Fixtures) All() []Fixture {
	return []Fixture{f.KeyLeft, f.KeyRight, f.StripLeft, f.StripRight, f.Back}
}

// chase returns the rotation order: strips and keys alternate so every chase
// phase flips exactly one color fixture and one temperature fixture.
func (f Fixtures) chase() []Fixture {
	return []Fixture{f.StripLeft, f.KeyLeft, f.StripRight, f.KeyRight}
}

func (f Fixtures) ids() []int {
	ids := make([]int, 0, 5)
	for _, fx := range f.All() {
		ids = append(ids, fx.ID)
	}
	return ids
}

// Recorder persists one line per effect run. Optional.
type Recorder interface {
	Record(effect, source, user, outcome string, took time.Duration)
}

// Engine owns the scheduler state shared by all effects: the abort flag, the
// live snapshot, the deferred color slot and the gift counter. One long-lived
// instance; every entry point enqueues onto the single action queue.
type Engine struct {
	bridge   bridge.Controller
	queue    *scheduler.Queue
	abort    *scheduler.Abort
	pacer    *scheduler.Pacer
	snaps    *SnapshotStore
	gifts    *GiftCounter
	resolver *Resolver
	recorder Recorder

	fx                   Fixtures
	cfg                  config.EffectsConfig
	reset                map[string]config.InitialState
	kelvinMin, kelvinMax int
}

// NewEngine wires an engine from configuration.
func NewEngine(ctrl bridge.Controller, queue *scheduler.Queue, abort *scheduler.Abort, pacer *scheduler.Pacer, recorder Recorder, cfg *config.Config) *Engine {
	fx := Fixtures{
		KeyLeft:    Fixture{Slot: "key_left", ID: cfg.Fixtures.KeyLeft},
		KeyRight:   Fixture{Slot: "key_right", ID: cfg.Fixtures.KeyRight},
		StripLeft:  Fixture{Slot: "strip_left", ID: cfg.Fixtures.StripLeft, Color: true},
		StripRight: Fixture{Slot: "strip_right", ID: cfg.Fixtures.StripRight, Color: true},
		Back:       Fixture{Slot: "back", ID: cfg.Fixtures.Back},
	}
	return &Engine{
		bridge:    ctrl,
		queue:     queue,
		abort:     abort,
		pacer:     pacer,
		snaps:     NewSnapshotStore(ctrl),
		gifts:     NewGiftCounter(),
		resolver:  NewResolver(cfg.Schemes, cfg.Hue.KelvinMin, cfg.Hue.KelvinMax),
		recorder:  recorder,
		fx:        fx,
		cfg:       cfg.Effects,
		reset:     cfg.Reset,
		kelvinMin: cfg.Hue.KelvinMin,
		kelvinMax: cfg.Hue.KelvinMax,
	}
}

// Gifts exposes the counter for event handlers.
func (e *Engine) Gifts() *GiftCounter { return e.gifts }

// CancelAll raises the abort flag, queues the action that clears it again and
// blocks until the queue has drained through that action. The running effect
// observes the flag at its next checkpoint and bails; only then does the
// clearing action run, so everything queued behind the caller starts clean.
func (e *Engine) CancelAll() {
	e.abort.Raise()
	log.Debug().Msg("Abort raised, waiting for queue to drain")
	<-e.queue.Enqueue("clear-abort", func(ctx context.Context) error {
		e.abort.Clear()
		return nil
	})
}

// Reset enqueues the reset effect.
func (e *Engine) Reset(source, user string) <-chan error {
	return e.submit("reset", source, user, e.runReset)
}

// SelfTest enqueues the self-test effect.
func (e *Engine) SelfTest(source, user string) <-chan error {
	return e.submit("selftest", source, user, e.runSelfTest)
}

// Raid enqueues the rotating chase, scaled by the raiding party size.
func (e *Engine) Raid(source, user string, viewers int) <-chan error {
	cycles := e.cfg.RotateCycles + viewers/10
	if cycles > 24 {
		cycles = 24
	}
	return e.submit("raid", source, user, func(ctx context.Context) error {
		return e.runRotate(ctx, cycles)
	})
}

// Subscribed enqueues the warm flash for a new subscription.
func (e *Engine) Subscribed(source, user string) <-chan error {
	return e.submit("sub", source, user, func(ctx context.Context) error {
		return e.runFlash(ctx, e.mired(e.cfg.WarmKelvin), e.cfg.FlashCycles)
	})
}

// Resubscribed enqueues the warm flash, slightly longer for long streaks.
func (e *Engine) Resubscribed(source, user string, months int) <-chan error {
	cycles := e.cfg.FlashCycles + months/12
	if cycles > e.cfg.FlashCycles+4 {
		cycles = e.cfg.FlashCycles + 4
	}
	return e.submit("resub", source, user, func(ctx context.Context) error {
		return e.runFlash(ctx, e.mired(e.cfg.WarmKelvin), cycles)
	})
}

// GiftReceived handles one gifted subscription. Gifts that belong to an
// announced batch were already celebrated and are suppressed.
func (e *Engine) GiftReceived(source, giver, recipient string) <-chan error {
	if e.gifts.ConsumeOne(giver) {
		log.Debug().Str("giver", giver).Str("recipient", recipient).Msg("Gift covered by batch, effect suppressed")
		done := make(chan error, 1)
		done <- nil
		return done
	}
	return e.Subscribed(source, recipient)
}

// GiftBatch registers the batch with the counter and enqueues one big flash.
func (e *Engine) GiftBatch(source, giver string, count int) <-chan error {
	e.gifts.RegisterBatch(giver, count)
	cycles := e.cfg.FlashCycles + count
	if cycles > e.cfg.FlashCycles+10 {
		cycles = e.cfg.FlashCycles + 10
	}
	return e.submit("giftbatch", source, giver, func(ctx context.Context) error {
		return e.runFlash(ctx, e.mired(e.cfg.WarmKelvin), cycles)
	})
}

// Bits enqueues the cool flash, scaled by the cheered amount.
func (e *Engine) Bits(source, user string, bits int) <-chan error {
	cycles := e.cfg.FlashCycles + bits/100
	if cycles > e.cfg.FlashCycles+12 {
		cycles = e.cfg.FlashCycles + 12
	}
	return e.submit("bits", source, user, func(ctx context.Context) error {
		return e.runFlash(ctx, e.mired(e.cfg.CoolKelvin), cycles)
	})
}

// Color resolves free text into a left/right setting pair and enqueues the
// application. Unresolvable input changes nothing.
func (e *Engine) Color(source, user, text string) <-chan error {
	done := make(chan error, 1)
	pair, ok := e.resolver.Resolve(text)
	if !ok {
		log.Info().Str("user", user).Str("text", text).Msg("Color request matched no scheme or hex code")
		done <- nil
		return done
	}
	return e.submit("color", source, user, func(ctx context.Context) error {
		return e.applyColor(ctx, pair)
	})
}

// StateDump logs the current reported state of every present fixture. Runs as
// a queued action so it observes a quiet bridge.
func (e *Engine) StateDump(source, user string) <-chan error {
	return e.submit("statedump", source, user, func(ctx context.Context) error {
		for _, fx := range e.fx.All() {
			if fx.ID == 0 {
				log.Info().Str("fixture", fx.Slot).Msg("Fixture absent")
				continue
			}
			st, err := e.bridge.LightState(ctx, fx.ID)
			if err != nil {
				log.Warn().Err(err).Str("fixture", fx.Slot).Msg("State fetch failed")
				continue
			}
			ev := log.Info().Str("fixture", fx.Slot).Int("id", fx.ID)
			if st.On != nil {
				ev = ev.Bool("on", *st.On)
			}
			if st.Bri != nil {
				ev = ev.Uint8("bri", *st.Bri)
			}
			if st.Ct != nil {
				ev = ev.Uint16("ct", *st.Ct)
			}
			if len(st.XY) == 2 {
				ev = ev.Floats32("xy", st.XY)
			}
			if st.Effect != "" {
				ev = ev.Str("effect", st.Effect)
			}
			ev.Msg("Fixture state")
		}
		return nil
	})
}

// submit wraps an effect with its boundary: run logging, outcome
// classification and the ledger record. Errors never travel past here into
// the queue's own control flow.
func (e *Engine) submit(effect, source, user string, fn scheduler.Action) <-chan error {
	return e.queue.Enqueue(effect, func(ctx context.Context) error {
		start := time.Now()
		log.Info().Str("effect", effect).Str("source", source).Str("user", user).Msg("Effect started")

		err := fn(ctx)

		outcome := "completed"
		switch {
		case errors.Is(err, scheduler.ErrAborted):
			outcome = "aborted"
			log.Info().Str("effect", effect).Dur("took", time.Since(start)).Msg("Effect aborted")
		case err != nil:
			outcome = "failed"
			log.Error().Err(err).Str("effect", effect).Dur("took", time.Since(start)).Msg("Effect failed")
		default:
			log.Info().Str("effect", effect).Dur("took", time.Since(start)).Msg("Effect finished")
		}

		if e.recorder != nil {
			e.recorder.Record(effect, source, user, outcome, time.Since(start))
		}
		return err
	})
}

// command is one fixture mutation inside a phase.
type command struct {
	fixture Fixture
	state   bridge.State
}

// phase is one checkpointed, paced batch: poll the abort flag, wait out the
// pacing interval, then issue every command concurrently and settle them all.
// An absent fixture burns the command's transition delay instead so the phase
// keeps its shape with a fixture unplugged.
func (e *Engine) phase(ctx context.Context, cmds ...command) error {
	if err := e.abort.Check(); err != nil {
		return err
	}
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}

	g := new(errgroup.Group)
	for _, cmd := range cmds {
		cmd := cmd
		g.Go(func() error {
			if cmd.fixture.ID == 0 {
				return scheduler.Sleep(ctx, e.transitionOf(cmd.state))
			}
			if err := e.bridge.Apply(ctx, cmd.fixture.ID, cmd.state); err != nil {
				log.Warn().Err(err).Str("fixture", cmd.fixture.Slot).Msg("Fixture command failed")
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) transitionOf(st bridge.State) time.Duration {
	if st.Transition != nil {
		return *st.Transition
	}
	return e.pacer.Interval()
}

func (e *Engine) mired(kelvin int) uint16 {
	return bridge.KelvinToMired(kelvin, e.kelvinMin, e.kelvinMax)
}
