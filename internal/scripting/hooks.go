package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/mosaic/internal/game/spawn"
)

// Hook names looked up in the script VM.
const (
	HookCanPurchase      = "can_purchase"
	HookNodeStateChanged = "on_node_state_changed"
	HookBoardSpawned     = "on_board_spawned"
	HookBoardRemoved     = "on_board_removed"
	HookSpawnRejected    = "on_spawn_rejected"
)

// HookCaller invokes a Lua hook by name. *Manager satisfies it.
type HookCaller interface {
	CallHook(hook string, args ...lua.LValue) (lua.LValue, error)
}

// Hooks adapts script hooks to the engine: it is both a spawn.Observer and
// a spawn.PurchaseGate.
type Hooks struct {
	caller HookCaller
}

// NewHooks returns Hooks dispatching to caller.
//
// Precondition: caller must be non-nil.
func NewHooks(caller HookCaller) *Hooks {
	return &Hooks{caller: caller}
}

// AllowPurchase calls can_purchase(board_id, col, row, node_type). Only an
// explicit false vetoes; a missing hook or any other return allows.
func (h *Hooks) AllowPurchase(ev spawn.NodeEvent) bool {
	ret, err := h.caller.CallHook(HookCanPurchase,
		lua.LString(ev.Board),
		lua.LNumber(ev.Position.Col),
		lua.LNumber(ev.Position.Row),
		lua.LString(ev.Type),
	)
	if err != nil {
		return true
	}
	return ret != lua.LFalse
}

// NodeStateChanged calls on_node_state_changed(board_id, col, row, state, name).
func (h *Hooks) NodeStateChanged(ev spawn.NodeEvent) {
	_, _ = h.caller.CallHook(HookNodeStateChanged,
		lua.LString(ev.Board),
		lua.LNumber(ev.Position.Col),
		lua.LNumber(ev.Position.Row),
		lua.LString(ev.State.String()),
		lua.LString(ev.Name),
	)
}

// BoardSpawned calls on_board_spawned(board_id, world_x, world_y, template).
func (h *Hooks) BoardSpawned(ev spawn.BoardEvent) {
	_, _ = h.caller.CallHook(HookBoardSpawned,
		lua.LString(ev.Board),
		lua.LNumber(ev.WorldPosition.X),
		lua.LNumber(ev.WorldPosition.Y),
		lua.LString(ev.Template),
	)
}

// BoardRemoved calls on_board_removed(board_id).
func (h *Hooks) BoardRemoved(ev spawn.BoardEvent) {
	_, _ = h.caller.CallHook(HookBoardRemoved, lua.LString(ev.Board))
}

// SpawnRejected calls on_spawn_rejected(slot, template, reason).
func (h *Hooks) SpawnRejected(ev spawn.RejectEvent) {
	reason := ""
	if ev.Err != nil {
		reason = ev.Err.Error()
	}
	_, _ = h.caller.CallHook(HookSpawnRejected,
		lua.LString(ev.Slot.String()),
		lua.LString(ev.Template),
		lua.LString(reason),
	)
}
