// Package cli provides the faff command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/faff/internal/errs"
	"github.com/sadopc/faff/internal/logger"
	"github.com/sadopc/faff/internal/workspace"
)

// app holds the state shared by every command of one invocation.
type app struct {
	dir      string
	logLevel string

	// clock and interactive are replaced in tests.
	clock       func() time.Time
	interactive func() bool

	ws *workspace.Workspace
}

func newApp() *app {
	return &app{clock: time.Now, interactive: stdinIsTerminal}
}

// open finds and opens the ledger once per invocation.
func (a *app) open() (*workspace.Workspace, error) {
	if a.ws != nil {
		return a.ws, nil
	}
	dir := a.dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if dir, err = workspace.Find(cwd); err != nil {
			if errors.Is(err, errs.NotFound) {
				return nil, fmt.Errorf("%w\nRun 'faff init' to create a ledger", err)
			}
			return nil, err
		}
	}

	ws, err := workspace.Open(dir, workspace.WithClock(a.clock))
	if err != nil {
		return nil, err
	}
	cfg := ws.Config()
	level := a.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	if err := logger.Configure(level, cfg.Log.File); err != nil {
		ws.Close()
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.Debug("ledger opened", "dir", dir)
	a.ws = ws
	return ws, nil
}

func (a *app) close() {
	if a.ws != nil {
		if err := a.ws.Close(); err != nil {
			logger.Warn("closing ledger", "err", err)
		}
		a.ws = nil
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "faff",
		Short: "Plain-text time tracking against planned intents",
		Long: `faff records what you work on as a daily log of sessions, each one
pointing at an intent: a role, objective, action and subject drawn from
the plans in your ledger.

Logs and plans are YAML files under .faff/ and safe to edit by hand.

Examples:
  faff init
  faff start local:1b2c... "inbox zero"
  faff stop -r 4
  faff query sessions --since monday --group alias`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !logger.ValidLevel(a.logLevel) {
				return fmt.Errorf("invalid log level: %s", a.logLevel)
			}
			return logger.Configure(a.logLevel, "")
		},
	}

	root.PersistentFlags().StringVar(&a.dir, "dir", "", "ledger directory (default: nearest .faff, or $FAFF_DIR)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	root.AddCommand(
		a.initCmd(),
		a.startCmd(),
		a.stopCmd(),
		a.statusCmd(),
		a.watchCmd(),
		a.logCmd(),
		a.queryCmd(),
		a.intentCmd(),
		a.fieldCmd(),
		a.planCmd(),
		a.pullCmd(),
	)
	return root
}

// Execute runs the root command, reporting any error on stderr.
func Execute(ctx context.Context) error {
	a := newApp()
	defer a.close()
	err := a.rootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
	}
	return err
}
