package console

import (
	"context"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/frontend/telnet"
)

// Sessions runs one Console per remote Telnet client. Every session drives
// the same Tree; the spawn choice selection and the pending allocation set
// are per session.
type Sessions struct {
	Tree   Tree
	Ledger Ledger
	Prompt string
	// Reload, if set, backs the reload command in every session.
	Reload func() error
	Logger *zap.Logger
}

// HandleSession implements telnet.SessionHandler.
//
// Postcondition: Returns when the client quits, disconnects, or ctx is cancelled.
func (s *Sessions) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	logger := s.Logger.With(zap.String("remote_addr", conn.RemoteAddr().String()))
	c := New(s.Tree, s.Ledger, conn, conn, s.Prompt, logger)
	c.Reload = s.Reload
	c.ANSI = true

	stop := context.AfterFunc(ctx, c.Stop)
	defer stop()

	c.printf("connected to mosaic; type help\n")
	return c.Start()
}
