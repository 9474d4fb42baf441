package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RegisterModules registers the engine.* Lua tables into L.
//
// Precondition: L must be a sandboxed state.
// Postcondition: engine global is defined in L with a log sub-table.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()
	log := L.NewTable()
	L.SetField(log, "debug", L.NewFunction(m.luaLog(zapcore.DebugLevel)))
	L.SetField(log, "info", L.NewFunction(m.luaLog(zapcore.InfoLevel)))
	L.SetField(log, "warn", L.NewFunction(m.luaLog(zapcore.WarnLevel)))
	L.SetField(engine, "log", log)
	L.SetGlobal("engine", engine)
}

// luaLog returns engine.log.<level>(msg).
func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		if ce := m.logger.Check(level, msg); ce != nil {
			ce.Write(zap.String("source", "lua"))
		}
		return 0
	}
}
