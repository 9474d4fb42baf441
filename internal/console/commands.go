// Package console provides the interactive dev console: the command
// registry, the line parser, command handlers and the ASCII board renderer.
package console

// Categories for organizing commands.
const (
	CategoryTree   = "tree"
	CategoryView   = "view"
	CategorySystem = "system"
)

// Handler identifiers mapping commands to console handlers.
const (
	HandlerClick     = "click"
	HandlerSpawn     = "spawn"
	HandlerConfirm   = "confirm"
	HandlerCancel    = "cancel"
	HandlerRemove    = "remove"
	HandlerShow      = "show"
	HandlerBoards    = "boards"
	HandlerPurchased = "purchased"
	HandlerReload    = "reload"
	HandlerHelp      = "help"
	HandlerQuit      = "quit"
)

// Command defines a console command.
type Command struct {
	// Name is the canonical command name.
	Name string
	// Aliases are alternate names for this command.
	Aliases []string
	// Usage is the argument synopsis shown by help.
	Usage string
	// Help is the short help text.
	Help string
	// Category groups the command.
	Category string
	// Handler selects the console handler.
	Handler string
}

// BuiltinCommands returns all built-in console commands.
func BuiltinCommands() []Command {
	return []Command{
		{Name: "click", Aliases: []string{"c"}, Usage: "<board> <col> <row>", Help: "Click a node", Category: CategoryTree, Handler: HandlerClick},
		{Name: "spawn", Aliases: []string{"sp"}, Usage: "<board>:<direction> <template>", Help: "Spawn a board from an extension slot", Category: CategoryTree, Handler: HandlerSpawn},
		{Name: "confirm", Aliases: []string{"ok"}, Help: "Purchase the pending allocation", Category: CategoryTree, Handler: HandlerConfirm},
		{Name: "cancel", Help: "Discard the pending allocation", Category: CategoryTree, Handler: HandlerCancel},
		{Name: "remove", Aliases: []string{"rm"}, Usage: "<board>", Help: "Remove a leaf extension board", Category: CategoryTree, Handler: HandlerRemove},

		{Name: "show", Aliases: []string{"s"}, Usage: "[board]", Help: "Draw a board (default core)", Category: CategoryView, Handler: HandlerShow},
		{Name: "boards", Aliases: []string{"b"}, Help: "List every board", Category: CategoryView, Handler: HandlerBoards},
		{Name: "purchased", Aliases: []string{"p"}, Help: "List purchased nodes and stat totals", Category: CategoryView, Handler: HandlerPurchased},

		{Name: "reload", Help: "Reload templates and scripts", Category: CategorySystem, Handler: HandlerReload},
		{Name: "help", Aliases: []string{"?"}, Help: "Show available commands", Category: CategorySystem, Handler: HandlerHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Help: "Leave the console", Category: CategorySystem, Handler: HandlerQuit},
	}
}
