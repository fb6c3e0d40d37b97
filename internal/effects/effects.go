package effects

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dokzlo13/blinkd/internal/bridge"
	"github.com/dokzlo13/blinkd/internal/config"
	"github.com/dokzlo13/blinkd/internal/scheduler"
)

const (
	shortTransition = 400 * time.Millisecond
	briefPause      = 500 * time.Millisecond
	blinkCount      = 3
	flashLowBri     = 32
)

func stOff(transition time.Duration) bridge.State {
	off := false
	return bridge.State{On: &off, Transition: &transition}
}

func stOn(bri uint8, transition time.Duration) bridge.State {
	on := true
	return bridge.State{On: &on, Bri: &bri, Transition: &transition}
}

func stOnCt(bri uint8, ct uint16, transition time.Duration) bridge.State {
	st := stOn(bri, transition)
	st.Ct = &ct
	return st
}

func stOnXY(bri uint8, xy []float32, transition time.Duration) bridge.State {
	st := stOn(bri, transition)
	st.XY = []float32{xy[0], xy[1]}
	return st
}

func stClearEffect(transition time.Duration) bridge.State {
	on := true
	return bridge.State{On: &on, Effect: "none", Transition: &transition}
}

// runReset drives every configured fixture back to its initial setting. No
// snapshot is taken; there is no previous state worth protecting here. All
// fixtures are handled concurrently.
func (e *Engine) runReset(ctx context.Context) error {
	if err := e.abort.Check(); err != nil {
		return err
	}
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}

	g := new(errgroup.Group)
	for slot, init := range e.reset {
		fx, ok := e.fixtureBySlot(slot)
		if !ok {
			log.Warn().Str("fixture", slot).Msg("Reset entry for unknown fixture slot")
			continue
		}
		if fx.ID == 0 {
			continue
		}

		state := e.initialState(init)
		g.Go(func() error {
			if fx.Color {
				// Drop any running effect mode before touching color fields
				if err := e.bridge.Apply(ctx, fx.ID, stClearEffect(0)); err != nil {
					return err
				}
				if err := scheduler.Sleep(ctx, e.pacer.Interval()); err != nil {
					return err
				}
			}
			return e.bridge.Apply(ctx, fx.ID, state)
		})
	}
	return g.Wait()
}

func (e *Engine) initialState(init config.InitialState) bridge.State {
	transition := shortTransition
	st := bridge.State{
		On:         init.On,
		Bri:        init.Bri,
		Transition: &transition,
	}
	if init.Kelvin != 0 {
		ct := e.mired(init.Kelvin)
		st.Ct = &ct
	}
	if len(init.XY) == 2 {
		st.XY = []float32{init.XY[0], init.XY[1]}
	}
	return st
}

func (e *Engine) fixtureBySlot(slot string) (Fixture, bool) {
	for _, fx := range e.fx.All() {
		if fx.Slot == slot {
			return fx, true
		}
	}
	return Fixture{}, false
}

// runSelfTest blinks every fixture in turn so a glance at the room verifies
// the whole rig. Prior state is snapshotted first and restored at the end;
// an abort or device error ends the sequence early without forcing a restore.
func (e *Engine) runSelfTest(ctx context.Context) error {
	if err := e.snaps.Save(ctx, e.fx.ids()); err != nil {
		return err
	}

	// Everything dark, instantly
	if err := e.phase(ctx, command{e.fx.StripLeft, stClearEffect(0)}, command{e.fx.StripRight, stClearEffect(0)}); err != nil {
		return err
	}
	all := make([]command, 0, 5)
	for _, fx := range e.fx.All() {
		all = append(all, command{fx, stOff(0)})
	}
	if err := e.phase(ctx, all...); err != nil {
		return err
	}
	if err := scheduler.Sleep(ctx, briefPause); err != nil {
		return err
	}

	for _, fx := range e.fx.All() {
		for i := 0; i < blinkCount; i++ {
			if err := e.phase(ctx, command{fx, stOn(bridge.BriMax, 0)}); err != nil {
				return err
			}
			if err := e.phase(ctx, command{fx, stOff(0)}); err != nil {
				return err
			}
		}
	}

	if err := scheduler.Sleep(ctx, briefPause); err != nil {
		return err
	}
	return e.snaps.Restore(ctx)
}

// runRotate plays the diagonal chase: the dark position travels strip-left,
// key-left, strip-right, key-right, so each phase flips exactly one color and
// one temperature fixture.
func (e *Engine) runRotate(ctx context.Context, cycles int) error {
	if err := e.snaps.Save(ctx, e.fx.ids()); err != nil {
		return err
	}

	// Prep: effect modes off, backlight out of the picture
	if err := e.phase(ctx,
		command{e.fx.StripLeft, stClearEffect(0)},
		command{e.fx.StripRight, stClearEffect(0)},
		command{e.fx.Back, stOff(0)},
	); err != nil {
		return err
	}
	if err := e.phase(ctx,
		command{e.fx.StripLeft, e.accentState()},
		command{e.fx.StripRight, e.accentState()},
		command{e.fx.KeyLeft, e.keyBrightState()},
		command{e.fx.KeyRight, e.keyBrightState()},
	); err != nil {
		return err
	}

	order := e.fx.chase()
	for c := 0; c < cycles; c++ {
		for i := 0; i < len(order); i++ {
			dark := order[i]
			relit := order[(i+len(order)-1)%len(order)]
			if err := e.phase(ctx,
				command{dark, stOff(0)},
				command{relit, e.brightStateFor(relit)},
			); err != nil {
				return err
			}
		}
	}

	return e.snaps.Restore(ctx)
}

func (e *Engine) accentState() bridge.State {
	return stOnXY(e.cfg.AccentBri, e.cfg.AccentXY, 0)
}

func (e *Engine) keyBrightState() bridge.State {
	return stOnCt(bridge.BriMax, e.mired(e.cfg.RotateKelvin), 0)
}

func (e *Engine) brightStateFor(fx Fixture) bridge.State {
	if fx.Color {
		return e.accentState()
	}
	return e.keyBrightState()
}

// runFlash plays the high/low checkerboard at the requested temperature. Each
// state is held for four pacing intervals; the bright diagonal alternates
// every cycle.
func (e *Engine) runFlash(ctx context.Context, ct uint16, cycles int) error {
	if err := e.snaps.Save(ctx, e.fx.ids()); err != nil {
		return err
	}

	if err := e.phase(ctx,
		command{e.fx.StripLeft, stClearEffect(0)},
		command{e.fx.StripRight, stClearEffect(0)},
		command{e.fx.Back, stOff(0)},
	); err != nil {
		return err
	}

	for i := 0; i < cycles; i++ {
		high := stOnCt(bridge.BriMax, ct, 0)
		low := stOnCt(flashLowBri, ct, 0)
		if i%2 == 1 {
			high, low = low, high
		}
		if err := e.phase(ctx,
			command{e.fx.StripLeft, high},
			command{e.fx.KeyRight, high},
			command{e.fx.KeyLeft, low},
			command{e.fx.StripRight, low},
		); err != nil {
			return err
		}
		if err := e.pacer.Hold(ctx, 4); err != nil {
			return err
		}
	}

	return e.snaps.Restore(ctx)
}

// applyColor is the queued half of the color command: clear effect modes,
// fade both strips to the resolved pair, then set any requested effect mode
// once the fade has finished. Firmwares drop an effect request made during an
// active transition, hence the wait. With a snapshot live the whole step is
// parked until right after the restore.
func (e *Engine) applyColor(ctx context.Context, pair [2]bridge.State) error {
	if e.snaps.Live() {
		e.snaps.Defer(func(ctx context.Context) error {
			return e.applyColor(ctx, pair)
		})
		log.Debug().Msg("Snapshot live, color application deferred until restore")
		return nil
	}

	if err := e.phase(ctx,
		command{e.fx.StripLeft, stClearEffect(0)},
		command{e.fx.StripRight, stClearEffect(0)},
	); err != nil {
		return err
	}

	transition := e.cfg.ColorTransition.Duration()
	left, right := pair[0], pair[1]
	left.Transition = &transition
	right.Transition = &transition
	// Effect modes are re-applied separately after the fade
	leftEffect, rightEffect := left.Effect, right.Effect
	left.Effect = ""
	right.Effect = ""

	if err := e.phase(ctx, command{e.fx.StripLeft, left}, command{e.fx.StripRight, right}); err != nil {
		return err
	}
	if err := scheduler.Sleep(ctx, transition); err != nil {
		return err
	}

	var modes []command
	if leftEffect != "" && leftEffect != "none" {
		modes = append(modes, command{e.fx.StripLeft, bridge.State{Effect: leftEffect}})
	}
	if rightEffect != "" && rightEffect != "none" {
		modes = append(modes, command{e.fx.StripRight, bridge.State{Effect: rightEffect}})
	}
	if len(modes) == 0 {
		return nil
	}
	return e.phase(ctx, modes...)
}
