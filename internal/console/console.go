package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/game/board"
	"github.com/cory-johannsen/mosaic/internal/game/ledger"
	"github.com/cory-johannsen/mosaic/internal/game/spawn"
)

// errQuit ends the read loop without error.
var errQuit = errors.New("quit")

// Tree is the skill tree engine driven by the console. Clicks and the
// pending allocation set go through the console's own Allocation.
type Tree interface {
	NewAllocation() *spawn.Allocation
	RequestSpawn(slotID board.SlotID, templateID string) (board.BoardID, error)
	RemoveBoard(id board.BoardID) error
	CoreID() board.BoardID
	BoardAt(coord board.Coord) (board.BoardID, bool)
	Board(id board.BoardID) (spawn.BoardSnapshot, bool)
	Boards() []spawn.BoardSnapshot
	ExtensionChoices() []string
}

// LineReader yields input one line at a time. It returns io.EOF at the end
// of input.
type LineReader interface {
	ReadLine() (string, error)
}

type scannerReader struct {
	scanner *bufio.Scanner
}

// ScanLines adapts r into a LineReader.
func ScanLines(r io.Reader) LineReader {
	return &scannerReader{scanner: bufio.NewScanner(r)}
}

func (s *scannerReader) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Ledger reports purchased nodes and their stat totals.
type Ledger interface {
	Purchased() []ledger.Entry
	Totals() map[string]float64
}

// Console is a line-oriented dev console over a Tree. It implements
// server.Service: Start reads commands until quit, end of input, or Stop.
type Console struct {
	tree     Tree
	alloc    *spawn.Allocation
	ledger   Ledger
	registry *Registry
	logger   *zap.Logger
	in       LineReader
	out      io.Writer
	prompt   string

	// Reload, if set, backs the reload command.
	Reload func() error
	// ANSI draws boards with terminal colours.
	ANSI bool

	mu sync.Mutex
	// lastSlot remembers the slot from the most recent spawn choice click.
	lastSlot *board.SlotID

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Console reading from in and writing to out. The console
// opens its own Allocation on tree, so its pending nodes are private to it.
//
// Precondition: tree, in, out and logger must be non-nil. lg may be nil.
func New(tree Tree, lg Ledger, in LineReader, out io.Writer, prompt string, logger *zap.Logger) *Console {
	ctx, cancel := context.WithCancel(context.Background())
	return &Console{
		tree:     tree,
		alloc:    tree.NewAllocation(),
		ledger:   lg,
		registry: DefaultRegistry(),
		logger:   logger.Named("console"),
		in:       in,
		out:      out,
		prompt:   prompt,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the read loop.
//
// Postcondition: Returns nil on quit, end of input, or Stop; returns an
// error only if reading the input fails.
func (c *Console) Start() error {
	defer c.cancel()
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		for {
			line, err := c.in.ReadLine()
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				readErr <- err
				return
			}
			select {
			case lines <- line:
			case <-c.ctx.Done():
				return
			}
		}
	}()

	c.logger.Info("console started")
	for {
		c.printf("%s", c.prompt)
		select {
		case <-c.ctx.Done():
			return nil
		case err := <-readErr:
			c.printf("\n")
			if err != nil {
				return fmt.Errorf("reading console input: %w", err)
			}
			return nil
		case line := <-lines:
			if err := c.Execute(line); errors.Is(err, errQuit) {
				c.logger.Info("console quit")
				return nil
			}
		}
	}
}

// Stop ends a running Start. Safe to call more than once.
func (c *Console) Stop() {
	c.cancel()
}

// Execute parses and runs one command line, writing its output.
//
// Postcondition: Command failures are printed and logged; the returned error
// is non-nil only for the quit command.
func (c *Console) Execute(line string) error {
	parsed := Parse(line)
	if parsed.Command == "" {
		return nil
	}
	cmd, ok := c.registry.Resolve(parsed.Command)
	if !ok {
		c.printf("unknown command %q; type help\n", parsed.Command)
		return nil
	}
	handler, ok := handlers[cmd.Handler]
	if !ok {
		c.printf("command %q has no handler\n", cmd.Name)
		return nil
	}
	err := handler(c, parsed.Args)
	switch {
	case errors.Is(err, errQuit):
		return err
	case err != nil:
		c.logger.Debug("command failed",
			zap.String("command", cmd.Name),
			zap.Strings("args", parsed.Args),
			zap.Error(err),
		)
		c.printf("error: %v\n", err)
	}
	return nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
