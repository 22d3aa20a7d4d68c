// Package script runs a user Lua script for every streamed message. The script defines
// a global function on_event(ev); ev holds the message fields plus "stream" (the stream
// key) and "raw" (the message text). A Log table with Info, Debug, Warn and Error is
// available to the script.
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/akyaiy/cortexlink/internal/cortex/stream"
	lua "github.com/yuin/gopher-lua"
)

const HookName = "on_event"

var ErrNoHook = errors.New("script does not define " + HookName)

// Runner owns one Lua state. Consume calls are serialized, so it can be wrapped in a
// stream.Queue or used directly.
type Runner struct {
	name string
	log  *slog.Logger

	mu     sync.Mutex
	L      *lua.LState
	hook   *lua.LFunction
	closed bool

	calls  atomic.Uint64
	errors atomic.Uint64
}

// Load runs the script file at path and returns a runner bound to its on_event.
func Load(path string, log *slog.Logger) (*Runner, error) {
	return load(path, log, func(L *lua.LState) error { return L.DoFile(path) })
}

// LoadString is Load for an in-memory script; name is used in logs.
func LoadString(name, src string, log *slog.Logger) (*Runner, error) {
	return load(name, log, func(L *lua.LState) error { return L.DoString(src) })
}

func load(name string, log *slog.Logger, run func(L *lua.LState) error) (*Runner, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		name: name,
		log:  log.With(slog.String("script", name)),
		L:    lua.NewState(),
	}
	r.L.SetGlobal("Log", r.logTable())

	if err := run(r.L); err != nil {
		r.L.Close()
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	hook, ok := r.L.GetGlobal(HookName).(*lua.LFunction)
	if !ok {
		r.L.Close()
		return nil, fmt.Errorf("script %s: %w", name, ErrNoHook)
	}
	r.hook = hook
	return r, nil
}

func (r *Runner) logTable() *lua.LTable {
	L := r.L
	logTable := L.NewTable()
	logFuncs := map[string]func(string, ...any){
		"Info":  r.log.Info,
		"Debug": r.log.Debug,
		"Error": r.log.Error,
		"Warn":  r.log.Warn,
	}
	for name, logFunc := range logFuncs {
		L.SetField(logTable, name, L.NewFunction(func(L *lua.LState) int {
			logFunc(fmt.Sprintf("the script says: %s", L.ToString(1)))
			return 0
		}))
	}
	return logTable
}

// Consume calls on_event with the message. Script errors are logged and counted; they
// never stop the stream.
func (r *Runner) Consume(msg stream.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.calls.Add(1)

	ev := r.L.NewTable()
	if fields, ok := msg.Fields(); ok {
		for k, v := range fields {
			r.L.SetField(ev, k, toLua(r.L, v))
		}
	}
	r.L.SetField(ev, "stream", lua.LString(msg.Stream()))
	r.L.SetField(ev, "raw", lua.LString(string(msg.Raw)))

	err := r.L.CallByParam(lua.P{Fn: r.hook, NRet: 1, Protect: true}, ev)
	if err != nil {
		r.errors.Add(1)
		r.log.Error("the script terminated with an error", slog.String("err", err.Error()))
		return
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	if ret != lua.LNil {
		r.log.Debug("script result", slog.Any("result", toGo(ret)))
	}
}

// Calls returns how many messages were passed to the script.
func (r *Runner) Calls() uint64 { return r.calls.Load() }

// Errors returns how many calls failed.
func (r *Runner) Errors() uint64 { return r.errors.Load() }

func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.L.Close()
	return nil
}
