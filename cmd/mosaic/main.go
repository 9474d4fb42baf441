// Package main provides the mosaic dev binary: it wires configuration,
// board templates, Lua hooks and the skill tree engine behind an
// interactive console.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/cory-johannsen/mosaic/internal/config"
	"github.com/cory-johannsen/mosaic/internal/console"
	"github.com/cory-johannsen/mosaic/internal/frontend/telnet"
	"github.com/cory-johannsen/mosaic/internal/game/content"
	"github.com/cory-johannsen/mosaic/internal/game/ledger"
	"github.com/cory-johannsen/mosaic/internal/game/spawn"
	"github.com/cory-johannsen/mosaic/internal/observability"
	"github.com/cory-johannsen/mosaic/internal/scripting"
	"github.com/cory-johannsen/mosaic/internal/server"
)

func main() {
	cmd := &cli.Command{
		Name:   "mosaic",
		Usage:  "Skill tree board mosaic with an interactive dev console",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "configs/dev.yaml",
				Value:       "configs/dev.yaml",
				Sources:     cli.EnvVars("MOSAIC_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Load the config and every board template and script, then exit",
				Action: validate,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("mosaic: %v", err)
	}
}

// deps are the components shared by run and validate.
type deps struct {
	cfg     config.Config
	logger  *zap.Logger
	library *content.Library
	scripts *scripting.Manager
}

func load(cmd *cli.Command) (*deps, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	loadStart := time.Now()
	templates, err := content.LoadTemplatesFromDir(cfg.Content.BoardsDir)
	if err != nil {
		return nil, fmt.Errorf("loading board templates: %w", err)
	}
	library, err := content.NewLibrary(templates)
	if err != nil {
		return nil, fmt.Errorf("building template library: %w", err)
	}
	logger.Info("board templates loaded",
		zap.String("dir", cfg.Content.BoardsDir),
		zap.Int("count", library.Len()),
		zap.Duration("elapsed", time.Since(loadStart)),
	)

	scripts := scripting.NewManager(logger)
	if cfg.Content.ScriptsDir != "" {
		if err := scripts.LoadDir(cfg.Content.ScriptsDir, cfg.Content.ScriptInstructionLimit); err != nil {
			return nil, fmt.Errorf("loading scripts: %w", err)
		}
		logger.Info("scripts loaded", zap.String("dir", cfg.Content.ScriptsDir))
	}

	return &deps{cfg: cfg, logger: logger, library: library, scripts: scripts}, nil
}

func validate(_ context.Context, cmd *cli.Command) error {
	d, err := load(cmd)
	if err != nil {
		return err
	}
	defer d.logger.Sync()
	defer d.scripts.Close()

	if _, ok := d.library.Template(d.cfg.Tree.CoreTemplate); !ok {
		return fmt.Errorf("core template %q not found in %s", d.cfg.Tree.CoreTemplate, d.cfg.Content.BoardsDir)
	}
	fmt.Fprintf(os.Stdout, "ok: %d template(s)\n", d.library.Len())
	return nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()

	d, err := load(cmd)
	if err != nil {
		return err
	}
	defer d.logger.Sync()
	defer d.scripts.Close()
	logger := d.logger

	tree := d.cfg.Tree
	hooks := scripting.NewHooks(d.scripts)
	purchased := ledger.New()
	engine, err := spawn.New(spawn.Options{
		BoardSize:         tree.BoardSize,
		Start:             tree.Start(),
		ConfirmAllocation: tree.ConfirmAllocation,
		RetryBudget:       tree.ConnectRetryBudget,
		CoreTemplate:      tree.CoreTemplate,
	}, d.library, logger,
		spawn.WithObserver(observability.NewLogObserver(logger)),
		spawn.WithObserver(purchased),
		spawn.WithObserver(hooks),
		spawn.WithGate(hooks),
	)
	if err != nil {
		return fmt.Errorf("creating skill tree: %w", err)
	}

	reloadScripts := func() error {
		if d.cfg.Content.ScriptsDir == "" {
			return nil
		}
		return d.scripts.Reload()
	}

	watcher := content.NewWatcher(d.cfg.Content.BoardsDir, d.library, logger)
	watcher.SetDelay(d.cfg.Content.ReloadDelay)
	watcher.OnReload = func(int) {
		if err := reloadScripts(); err != nil {
			logger.Warn("script reload failed; keeping previous scripts", zap.Error(err))
		}
	}

	reload := func() error {
		if !watcher.Reload() {
			return fmt.Errorf("template reload failed; see log")
		}
		return nil
	}

	lifecycle := server.NewLifecycle(logger)
	if d.cfg.Content.Watch {
		lifecycle.Add("content-watcher", watcher)
	}
	if d.cfg.Telnet.Enabled {
		sessions := &console.Sessions{
			Tree:   engine,
			Ledger: purchased,
			Prompt: d.cfg.Console.Prompt,
			Reload: reload,
			Logger: logger,
		}
		lifecycle.Add("telnet", telnet.NewAcceptor(d.cfg.Telnet, sessions, logger))
	}
	if d.cfg.Console.Stdin {
		con := console.New(engine, purchased, console.ScanLines(os.Stdin), os.Stdout, d.cfg.Console.Prompt, logger)
		con.Reload = reload
		lifecycle.Add("console", con)
	}

	logger.Info("mosaic ready",
		zap.String("core_board", string(engine.CoreID())),
		zap.Int("board_size", tree.BoardSize),
		zap.Bool("confirm_allocation", tree.ConfirmAllocation),
		zap.Bool("scripts", d.scripts.Loaded()),
		zap.Bool("telnet", d.cfg.Telnet.Enabled),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		return fmt.Errorf("running services: %w", err)
	}
	return nil
}
