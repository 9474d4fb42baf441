package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"
)

func TestSandbox_UnsafeLibsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadDir(writeTempLua(t, "globals.lua", `
		function global_type(name)
			return type(_G[name])
		end
	`), 0))
	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile", "load", "collectgarbage", "require"} {
		ret, err := mgr.CallHook("global_type", lua.LString(name))
		require.NoError(t, err)
		assert.Equal(t, lua.LString("nil"), ret, "expected %s to be nil", name)
	}
}

func TestSandbox_LoadFailsOnUnsafeCall(t *testing.T) {
	mgr, _ := newTestManager(t)
	err := mgr.LoadDir(writeTempLua(t, "escape.lua", `os.execute("true")`), 0)
	assert.Error(t, err)
	assert.False(t, mgr.Loaded())
}

func TestSandbox_SafeLibsAvailable(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadDir(writeTempLua(t, "libs.lua", `
		function check()
			local x = math.sqrt(4)
			local s = string.upper("hello")
			local t = {}
			table.insert(t, s)
			return x == 2.0 and t[1] == "HELLO"
		end
	`), 0))
	ret, err := mgr.CallHook("check")
	require.NoError(t, err)
	assert.Equal(t, lua.LTrue, ret)
}

func TestSandbox_LoadHitsInstructionLimit(t *testing.T) {
	mgr, _ := newTestManager(t)
	err := mgr.LoadDir(writeTempLua(t, "spin.lua", `while true do end`), 10)
	assert.Error(t, err, "expected instruction limit error")
	assert.False(t, mgr.Loaded())
}

func TestSandbox_DefaultLimitRunsNormalScripts(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadDir(writeTempLua(t, "ok.lua", `local x = 1 + 1`), 0))
	assert.True(t, mgr.Loaded())
}

func TestProperty_InstructionLimitAlwaysStopsLoop(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(rt, "limit")
		mgr, _ := newTestManager(t)
		dir := writeTempLua(t, "spin.lua", `while true do end`)
		if err := mgr.LoadDir(dir, limit); err == nil {
			rt.Fatalf("expected error with limit=%d but got nil", limit)
		}
	})
}
