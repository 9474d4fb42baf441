package spawn

import "errors"

var (
	// ErrDuplicateBoardPlacement is returned when the target coarse cell is occupied.
	ErrDuplicateBoardPlacement = errors.New("duplicate board placement")
	// ErrMissingSourceContext is returned when a request cannot be traced to a board, node or slot.
	ErrMissingSourceContext = errors.New("missing source context")
	// ErrUnknownTemplate is returned when a spawn names no known extension template.
	ErrUnknownTemplate = errors.New("unknown board template")
	// ErrCoreBoardPermanent is returned when removing the core board.
	ErrCoreBoardPermanent = errors.New("core board cannot be removed")
	// ErrBoardHasChildren is returned when removing a board other boards were spawned from.
	ErrBoardHasChildren = errors.New("board has spawned children")
	// ErrScriptVeto is wrapped with board.ErrPurchasePreconditionFailed when a script refuses a purchase.
	ErrScriptVeto = errors.New("purchase vetoed by script")
)
