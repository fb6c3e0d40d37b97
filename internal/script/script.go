// Package script loads an optional Lua file that registers extra chat
// commands. Scripted commands run as queued actions, so they serialize with
// the built-in effects and respect the bridge command rate.
package script

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/blinkd/internal/bridge"
	"github.com/dokzlo13/blinkd/internal/scheduler"
)

// Runner holds the loaded script and its registered commands. The Lua state
// is single-threaded; every call into it happens inside a queued action.
type Runner struct {
	queue    *scheduler.Queue
	bridge   bridge.Controller
	pacer    *scheduler.Pacer
	fixtures map[string]int // slot name -> light id

	state *lua.LState
	cmds  map[string]*lua.LFunction

	// ctx of the running invocation; set only inside the queue's worker
	ctx context.Context
}

// Load parses the script and collects its command registrations.
func Load(path string, queue *scheduler.Queue, ctrl bridge.Controller, pacer *scheduler.Pacer, fixtures map[string]int) (*Runner, error) {
	r := &Runner{
		queue:    queue,
		bridge:   ctrl,
		pacer:    pacer,
		fixtures: fixtures,
		state:    lua.NewState(),
		cmds:     make(map[string]*lua.LFunction),
	}

	L := r.state
	L.SetGlobal("command", L.NewFunction(r.luaCommand))
	L.SetGlobal("sleep", L.NewFunction(r.luaSleep))
	L.PreloadModule("light", r.lightLoader)
	L.PreloadModule("log", logLoader)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}

	log.Info().Str("script", path).Int("commands", len(r.cmds)).Msg("Script loaded")
	return r, nil
}

// Close releases the Lua state.
func (r *Runner) Close() {
	r.state.Close()
}

// Has reports whether the script registered the command.
func (r *Runner) Has(name string) bool {
	_, ok := r.cmds[name]
	return ok
}

// Invoke enqueues one scripted command.
func (r *Runner) Invoke(name string, args []string) {
	fn, ok := r.cmds[name]
	if !ok {
		return
	}

	r.queue.Enqueue("script:"+name, func(ctx context.Context) error {
		r.ctx = ctx
		defer func() { r.ctx = nil }()

		tbl := r.state.NewTable()
		for _, a := range args {
			tbl.Append(lua.LString(a))
		}
		return r.state.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, tbl)
	})
}

// command(name, fn) registers a chat command
func (r *Runner) luaCommand(L *lua.LState) int {
	name := L.CheckString(1)
	fn := L.CheckFunction(2)
	r.cmds[name] = fn
	return 0
}

// sleep(ms) pauses the scripted sequence
func (r *Runner) luaSleep(L *lua.LState) int {
	ms := L.CheckInt(1)
	if err := scheduler.Sleep(r.ctx, millis(ms)); err != nil {
		L.RaiseError("cancelled")
	}
	return 0
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// lightLoader provides light.on(slot), light.off(slot), light.bri(slot, v),
// light.ct(slot, mireds), light.xy(slot, x, y)
func (r *Runner) lightLoader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, "on", L.NewFunction(func(L *lua.LState) int {
		on := true
		return r.apply(L, bridge.State{On: &on})
	}))
	L.SetField(mod, "off", L.NewFunction(func(L *lua.LState) int {
		off := false
		return r.apply(L, bridge.State{On: &off})
	}))
	L.SetField(mod, "bri", L.NewFunction(func(L *lua.LState) int {
		v := uint8(L.CheckInt(2))
		on := true
		return r.apply(L, bridge.State{On: &on, Bri: &v})
	}))
	L.SetField(mod, "ct", L.NewFunction(func(L *lua.LState) int {
		v := uint16(L.CheckInt(2))
		on := true
		return r.apply(L, bridge.State{On: &on, Ct: &v})
	}))
	L.SetField(mod, "xy", L.NewFunction(func(L *lua.LState) int {
		x := float32(L.CheckNumber(2))
		y := float32(L.CheckNumber(3))
		on := true
		return r.apply(L, bridge.State{On: &on, XY: []float32{x, y}})
	}))
	L.Push(mod)
	return 1
}

// apply issues one paced command to the slot named in the first Lua argument.
// Returns (ok, error_string) following the usual two-value convention.
func (r *Runner) apply(L *lua.LState, state bridge.State) int {
	slot := L.CheckString(1)
	id, ok := r.fixtures[slot]
	if !ok {
		L.Push(lua.LFalse)
		L.Push(lua.LString("unknown fixture: " + slot))
		return 2
	}
	if id == 0 {
		// Absent slot is a no-op
		L.Push(lua.LTrue)
		L.Push(lua.LNil)
		return 2
	}

	if err := r.pacer.Wait(r.ctx); err != nil {
		L.RaiseError("cancelled")
		return 0
	}
	if err := r.bridge.Apply(r.ctx, id, state); err != nil {
		log.Warn().Err(err).Str("fixture", slot).Msg("Scripted command failed")
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LTrue)
	L.Push(lua.LNil)
	return 2
}

func logLoader(L *lua.LState) int {
	mod := L.NewTable()
	L.SetField(mod, "debug", L.NewFunction(func(L *lua.LState) int {
		log.Debug().Str("source", "script").Msg(L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "info", L.NewFunction(func(L *lua.LState) int {
		log.Info().Str("source", "script").Msg(L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "warn", L.NewFunction(func(L *lua.LState) int {
		log.Warn().Str("source", "script").Msg(L.CheckString(1))
		return 0
	}))
	L.Push(mod)
	return 1
}
