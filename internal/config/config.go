// Package config provides Viper-based configuration loading for the mosaic engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/mosaic/internal/game/board"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// TreeConfig holds skill tree rules.
type TreeConfig struct {
	// BoardSize is the side length of every board. Must be odd and >= 3.
	BoardSize int `mapstructure:"board_size"`
	// StartCol and StartRow place the core Start node when the core template
	// names none. -1 for both selects the board centre.
	StartCol int `mapstructure:"start_col"`
	StartRow int `mapstructure:"start_row"`
	// ConfirmAllocation collects clicks into a pending set applied by confirm.
	ConfirmAllocation bool `mapstructure:"confirm_allocation"`
	// ConnectRetryBudget bounds how often a deferred connection may yield.
	ConnectRetryBudget int `mapstructure:"connect_retry_budget"`
	// CoreTemplate is the template ID of the core board.
	CoreTemplate string `mapstructure:"core_template"`
}

// Start returns the configured core Start position, or nil for the board centre.
func (t TreeConfig) Start() *board.Position {
	if t.StartCol < 0 && t.StartRow < 0 {
		return nil
	}
	return &board.Position{Col: t.StartCol, Row: t.StartRow}
}

// ContentConfig holds template and script locations.
type ContentConfig struct {
	// BoardsDir is the directory of board template YAML files.
	BoardsDir string `mapstructure:"boards_dir"`
	// ScriptsDir is an optional directory of Lua hook scripts.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// Watch reloads templates and scripts when their files change.
	Watch bool `mapstructure:"watch"`
	// ReloadDelay coalesces bursts of file events.
	ReloadDelay time.Duration `mapstructure:"reload_delay"`
	// ScriptInstructionLimit is the Lua opcode budget per hook call. 0 uses the default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// ConsoleConfig holds dev console settings.
type ConsoleConfig struct {
	// Prompt is printed before every command.
	Prompt string `mapstructure:"prompt"`
	// Stdin runs a console on standard input. Leaving stdin closes the process.
	Stdin bool `mapstructure:"stdin"`
}

// TelnetConfig holds the remote console listener settings.
type TelnetConfig struct {
	// Enabled starts the listener alongside the stdin console.
	Enabled bool `mapstructure:"enabled"`
	// Host is the bind address for the Telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the Telnet listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for Telnet connections. 0 disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for Telnet connections. 0 disables it.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxSessions caps concurrent remote sessions.
	MaxSessions int `mapstructure:"max_sessions"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Config is the top-level application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Tree    TreeConfig    `mapstructure:"tree"`
	Content ContentConfig `mapstructure:"content"`
	Console ConsoleConfig `mapstructure:"console"`
	Telnet  TelnetConfig  `mapstructure:"telnet"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTree(c.Tree); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateTelnet(c.Telnet); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateTree(t TreeConfig) error {
	var errs []string
	if t.BoardSize < 3 || t.BoardSize%2 == 0 {
		errs = append(errs, fmt.Sprintf("tree.board_size must be odd and >= 3, got %d", t.BoardSize))
	}
	if t.Start() != nil {
		if t.StartCol < 0 || t.StartCol >= t.BoardSize || t.StartRow < 0 || t.StartRow >= t.BoardSize {
			errs = append(errs, fmt.Sprintf("tree.start_col/start_row (%d,%d) must lie on the board", t.StartCol, t.StartRow))
		} else if _, isSlot := board.DirectionAt(*t.Start(), t.BoardSize); isSlot {
			errs = append(errs, "tree.start_col/start_row must not be an edge midpoint")
		}
	}
	if t.ConnectRetryBudget < 1 {
		errs = append(errs, fmt.Sprintf("tree.connect_retry_budget must be >= 1, got %d", t.ConnectRetryBudget))
	}
	if t.CoreTemplate == "" {
		errs = append(errs, "tree.core_template must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.BoardsDir == "" {
		errs = append(errs, "content.boards_dir must not be empty")
	}
	if c.ReloadDelay < 0 {
		errs = append(errs, "content.reload_delay must not be negative")
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("content.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateTelnet(t TelnetConfig) error {
	if !t.Enabled {
		return nil
	}
	var errs []string
	if t.Port < 0 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("telnet.port must be 0-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "telnet.write_timeout must not be negative")
	}
	if t.MaxSessions < 1 {
		errs = append(errs, fmt.Sprintf("telnet.max_sessions must be >= 1, got %d", t.MaxSessions))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with MOSAIC_ prefix
	v.SetEnvPrefix("MOSAIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewViper returns a Viper instance carrying every default, for callers that
// build configuration without a file.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tree.board_size", board.DefaultSize)
	v.SetDefault("tree.start_col", -1)
	v.SetDefault("tree.start_row", -1)
	v.SetDefault("tree.confirm_allocation", false)
	v.SetDefault("tree.connect_retry_budget", 3)
	v.SetDefault("tree.core_template", "core")

	v.SetDefault("content.boards_dir", "content/boards")
	v.SetDefault("content.scripts_dir", "")
	v.SetDefault("content.watch", false)
	v.SetDefault("content.reload_delay", "200ms")
	v.SetDefault("content.script_instruction_limit", 0)

	v.SetDefault("console.prompt", "mosaic> ")
	v.SetDefault("console.stdin", true)

	v.SetDefault("telnet.enabled", false)
	v.SetDefault("telnet.host", "127.0.0.1")
	v.SetDefault("telnet.port", 4040)
	v.SetDefault("telnet.read_timeout", "0s")
	v.SetDefault("telnet.write_timeout", "10s")
	v.SetDefault("telnet.max_sessions", 8)
}
