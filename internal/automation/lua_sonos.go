//go:build !no_automation

package automation

import (
	"context"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// commandTimeout bounds each speaker operation issued from Lua.
const commandTimeout = 10 * time.Second

// registerSonosModule registers the `sonos` global table in a Lua state.
func registerSonosModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()

	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int {
		return sonosOn(L, vm)
	}))

	mod.RawSetString("command", L.NewFunction(func(L *lua.LState) int {
		return sonosCommand(L, e)
	}))

	mod.RawSetString("macro", L.NewFunction(func(L *lua.LState) int {
		return sonosMacro(L, e)
	}))

	mod.RawSetString("volume", L.NewFunction(func(L *lua.LState) int {
		return sonosVolume(L, e)
	}))

	mod.RawSetString("set_volume", L.NewFunction(func(L *lua.LState) int {
		return sonosSetVolume(L, e)
	}))

	mod.RawSetString("play", L.NewFunction(func(L *lua.LState) int {
		return sonosPlay(L, e, true)
	}))

	mod.RawSetString("pause", L.NewFunction(func(L *lua.LState) int {
		return sonosPlay(L, e, false)
	}))

	mod.RawSetString("mute", L.NewFunction(func(L *lua.LState) int {
		return sonosMute(L, e)
	}))

	mod.RawSetString("speakers", L.NewFunction(func(L *lua.LState) int {
		return sonosSpeakers(L, e)
	}))

	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int {
		return sonosAfter(L, vm, e)
	}))

	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return sonosLog(L, e)
	}))

	L.SetGlobal("sonos", mod)
}

const maxHandlersPerScript = 100

// sonos.on(type, filter, callback)
func sonosOn(L *lua.LState, vm *scriptVM) int {
	eventType := L.CheckString(1)
	filterTable := L.CheckTable(2)
	fn := L.CheckFunction(3)

	h := luaEventHandler{
		eventType: eventType,
		fn:        fn,
	}

	if v := filterTable.RawGetString("speaker"); v != lua.LNil {
		h.speaker = v.String()
	}
	if v := filterTable.RawGetString("action"); v != lua.LNil {
		h.action = v.String()
	}
	if v := filterTable.RawGetString("macro"); v != lua.LNil {
		h.macroName = v.String()
	}

	vm.mu.Lock()
	if len(vm.handlers) >= maxHandlersPerScript {
		vm.mu.Unlock()
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	vm.mu.Unlock()

	return 0
}

// sonos.command(speaker, action, ...) -> result, ok
func sonosCommand(L *lua.LState, e *Engine) int {
	speaker := L.CheckString(1)
	action := L.CheckString(2)

	var args []string
	for i := 3; i <= L.GetTop(); i++ {
		args = append(args, L.CheckString(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	res, err := e.speakers.Invoke(ctx, speaker, action, args...)
	if err != nil {
		e.logger.Warn("script command failed", "speaker", speaker, "action", action, "err", err)
		L.Push(lua.LString(""))
		L.Push(lua.LBool(false))
		return 2
	}

	L.Push(lua.LString(res.Result))
	L.Push(lua.LBool(res.OK()))
	return 2
}

// sonos.macro(name, ...) -> ok
func sonosMacro(L *lua.LState, e *Engine) int {
	name := L.CheckString(1)

	var args []string
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, L.CheckString(i))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	exec, err := e.executor.Execute(ctx, name, args)
	if err != nil {
		e.logger.Warn("script macro failed", "macro", name, "err", err)
		L.Push(lua.LBool(false))
		return 1
	}

	L.Push(lua.LBool(exec.Success))
	return 1
}

// sonos.volume(speaker) -> level or nil
func sonosVolume(L *lua.LState, e *Engine) int {
	speaker := L.CheckString(1)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	v, err := e.speakers.Volume(ctx, speaker)
	if err != nil {
		e.logger.Warn("script volume read failed", "speaker", speaker, "err", err)
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(v))
	return 1
}

// sonos.set_volume(speaker, level)
func sonosSetVolume(L *lua.LState, e *Engine) int {
	speaker := L.CheckString(1)
	level := L.CheckInt(2)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := e.speakers.SetVolume(ctx, speaker, level); err != nil {
		e.logger.Warn("script set volume failed", "speaker", speaker, "err", err)
	}
	return 0
}

// sonos.play(speaker) / sonos.pause(speaker)
func sonosPlay(L *lua.LState, e *Engine, play bool) int {
	speaker := L.CheckString(1)
	action := "pause"
	if play {
		action = "play"
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := e.speakers.Invoke(ctx, speaker, action); err != nil {
		e.logger.Warn("script playback command failed", "speaker", speaker, "action", action, "err", err)
	}
	return 0
}

// sonos.mute(speaker, muted)
func sonosMute(L *lua.LState, e *Engine) int {
	speaker := L.CheckString(1)
	muted := L.CheckBool(2)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := e.speakers.SetMute(ctx, speaker, muted); err != nil {
		e.logger.Warn("script mute failed", "speaker", speaker, "err", err)
	}
	return 0
}

// sonos.speakers() -> table of speaker names
func sonosSpeakers(L *lua.LState, e *Engine) int {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	names, err := e.speakers.Names(ctx)
	if err != nil {
		L.Push(L.NewTable())
		return 1
	}

	tbl := L.NewTable()
	for i, name := range names {
		tbl.RawSetInt(i+1, lua.LString(name))
	}
	L.Push(tbl)
	return 1
}

// sonos.after(seconds, callback) — delayed execution
func sonosAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{
				Fn:      fn,
				NRet:    0,
				Protect: true,
			}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()

	return 0
}

// sonos.log(msg)
func sonosLog(L *lua.LState, e *Engine) int {
	msg := L.CheckString(1)
	e.logger.Info("script log", "msg", msg)
	return 0
}
