package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/transport"
)

// CLI is the top-level Kong struct.
type CLI struct {
	Config  string        `short:"c" help:"Path to configuration file." default:"config.yaml" type:"path"`
	URL     string        `short:"u" help:"Emulator websocket URL. Overrides bridge.url."`
	Timeout time.Duration `short:"t" help:"Per-call timeout. Overrides bridge.call_timeout."`
	Verbose bool          `short:"v" help:"Log transport activity to stderr."`

	Call    CallCmd    `cmd:"" help:"Run operations in order on one connection."`
	Watch   WatchCmd   `cmd:"" help:"Print emulator notices until interrupted."`
	Seed    SeedCmd    `cmd:"" help:"Publish rival scores to the score pipeline."`
	Actions ActionsCmd `cmd:"" help:"List the operation catalogue."`
}

func main() {
	var cli CLI
	k, err := kong.New(&cli,
		kong.Name("pgsctl"),
		kong.Description("Drive a Play Games Services emulator through the bridge."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		panic(err)
	}

	ctx, err := k.Parse(os.Args[1:])
	k.FatalIfErrorf(err)
	k.FatalIfErrorf(ctx.Run(&cli))
}

// loadConfig reads the config file, falling back to defaults when it is missing
func (c *CLI) loadConfig() *config.Config {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

// bridgeConfig resolves the transport settings from the config file and flags
func (c *CLI) bridgeConfig() config.BridgeConfig {
	bc := c.loadConfig().Bridge
	if c.URL != "" {
		bc.URL = c.URL
	}
	if c.Timeout > 0 {
		bc.CallTimeout = c.Timeout
	}
	return bc
}

func (c *CLI) logger() *slog.Logger {
	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (c *CLI) dial(ctx context.Context) (*transport.Client, *slog.Logger, error) {
	bc := c.bridgeConfig()
	logger := c.logger()
	client, err := transport.Dial(ctx, &bc, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to emulator: %w", err)
	}
	return client, logger, nil
}
