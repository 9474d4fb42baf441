package observability

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/game/spawn"
)

// LogObserver logs every engine event: node changes at Debug, board spawns
// and removals at Info, rejected spawns at Warn.
type LogObserver struct {
	logger *zap.Logger
}

// NewLogObserver returns a LogObserver writing to logger.
//
// Precondition: logger must be non-nil.
func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger.Named("events")}
}

// NodeStateChanged implements spawn.Observer.
func (o *LogObserver) NodeStateChanged(ev spawn.NodeEvent) {
	o.logger.Debug("node state changed",
		zap.String("board_id", string(ev.Board)),
		zap.Int("col", ev.Position.Col),
		zap.Int("row", ev.Position.Row),
		zap.String("type", string(ev.Type)),
		zap.Stringer("state", ev.State),
	)
}

// BoardSpawned implements spawn.Observer.
func (o *LogObserver) BoardSpawned(ev spawn.BoardEvent) {
	o.logger.Info("board spawned",
		zap.String("board_id", string(ev.Board)),
		zap.String("kind", string(ev.Kind)),
		zap.String("template", ev.Template),
		zap.Int("world_x", ev.WorldPosition.X),
		zap.Int("world_y", ev.WorldPosition.Y),
	)
}

// BoardRemoved implements spawn.Observer.
func (o *LogObserver) BoardRemoved(ev spawn.BoardEvent) {
	o.logger.Info("board removed",
		zap.String("board_id", string(ev.Board)),
		zap.Int("world_x", ev.WorldPosition.X),
		zap.Int("world_y", ev.WorldPosition.Y),
	)
}

// SpawnRejected implements spawn.Observer.
func (o *LogObserver) SpawnRejected(ev spawn.RejectEvent) {
	o.logger.Warn("spawn rejected",
		zap.String("slot", ev.Slot.String()),
		zap.String("template", ev.Template),
		zap.Error(ev.Err),
	)
}
