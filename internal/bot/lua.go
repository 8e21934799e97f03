package bot

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"pathtiles/internal/game"
)

// LuaStrategy compiles a Lua script into a Strategy. The script must define
//
//	function pick(moves) ... return i end
//
// where moves is an array of {index, rotation, x, y} tables and the return
// value is a 1-based position in that array. Out-of-range or non-numeric
// results fall back to the first move. The returned strategy is bound to one
// interpreter and must not be shared across goroutines.
func LuaStrategy(script string) (Strategy, error) {
	L := lua.NewState()
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("load strategy script: %w", err)
	}
	fn := L.GetGlobal("pick")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("strategy script must define a pick function, got %s", fn.Type())
	}

	return func(_ game.View, moves []game.Placement) int {
		tbl := L.NewTable()
		for _, m := range moves {
			mt := L.NewTable()
			mt.RawSetString("index", lua.LNumber(m.Index))
			mt.RawSetString("rotation", lua.LNumber(m.Rotation))
			mt.RawSetString("x", lua.LNumber(m.Loc.X))
			mt.RawSetString("y", lua.LNumber(m.Loc.Y))
			tbl.Append(mt)
		}
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, tbl); err != nil {
			return 0
		}
		ret := L.Get(-1)
		L.Pop(1)
		n, ok := ret.(lua.LNumber)
		if !ok {
			return 0
		}
		choice := int(n) - 1
		if choice < 0 || choice >= len(moves) {
			return 0
		}
		return choice
	}, nil
}
