// Package script lets energy rates be written in Lua.
//
// A rate script defines a global function rate(ship, dt) returning the
// amount for one frame. ship is a table with the fields id, speed, energy,
// height, rotation and running; dt is the frame length in seconds.
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

const entryPoint = "rate"

var _ fleet.Rate = (*Rate)(nil)

// Rate is a fleet.Rate backed by a Lua VM. It is not safe for concurrent use,
// which matches the single goroutine that owns the fleet.
type Rate struct {
	name string
	vm   *lua.LState
	fn   *lua.LFunction
	log  log.Log
}

// Compile loads src into a fresh VM with only the base, math, string and
// table libraries opened.
func Compile(name, src string, logger log.Log) (*Rate, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.MathLibName, lua.OpenMath},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
	} {
		if err := vm.CallByParam(lua.P{
			Fn:      vm.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("open lua lib %s: %w", lib.name, err)
		}
	}

	if err := vm.DoString(src); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load rate script %s: %w", name, err)
	}
	fn, ok := vm.GetGlobal(entryPoint).(*lua.LFunction)
	if !ok {
		vm.Close()
		return nil, fmt.Errorf("rate script %s: global function %q not defined", name, entryPoint)
	}

	return &Rate{
		name: name,
		vm:   vm,
		fn:   fn,
		log:  logger.With(log.String("script", name)),
	}, nil
}

// Expression compiles a single Lua expression over ship and dt, for example
// "ship.speed * dt / 200".
func Expression(name, expr string, logger log.Log) (*Rate, error) {
	return Compile(name, fmt.Sprintf("function %s(ship, dt)\n  return %s\nend", entryPoint, expr), logger)
}

func (r *Rate) Name() string { return r.name }

// Amount calls the script. Script errors and non-numeric results are logged
// and count as zero.
func (r *Rate) Amount(ship fleet.ShipState, dt float64) float64 {
	t := r.vm.NewTable()
	t.RawSetString("id", lua.LString(ship.ID))
	t.RawSetString("speed", lua.LNumber(ship.Speed))
	t.RawSetString("energy", lua.LNumber(ship.Energy))
	t.RawSetString("height", lua.LNumber(ship.Position.Height))
	t.RawSetString("rotation", lua.LNumber(ship.Position.Rotation))
	t.RawSetString("running", lua.LBool(ship.State == fleet.Running))

	if err := r.vm.CallByParam(lua.P{
		Fn:      r.fn,
		NRet:    1,
		Protect: true,
	}, t, lua.LNumber(dt)); err != nil {
		r.log.Warn("lua rate error", log.String("ship", ship.ID), log.Error(err))
		return 0
	}

	result := r.vm.Get(-1)
	r.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok {
		r.log.Warn("lua rate returned non-number",
			log.String("ship", ship.ID),
			log.String("type", result.Type().String()),
		)
		return 0
	}
	return float64(n)
}

// Close releases the VM.
func (r *Rate) Close() {
	r.vm.Close()
}
