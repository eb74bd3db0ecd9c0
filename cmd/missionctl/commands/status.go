package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	activities int
	format     string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Show the dashboard status, task rollup and recent activities.")
	c.Cmd.Flag("activities", "Number of recent activities to show, 0 disables them.").Default(fmt.Sprint(conventions.ActivityListLimit)).IntVar(&c.activities)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	snap, err := svcs.dashboard.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("could not get dashboard: %w", err)
	}

	p := c.rootCmd.printer(c.format)
	if err := p.PrintDashboard(*snap); err != nil {
		return wrapPrintErr(err)
	}

	if c.activities <= 0 {
		return nil
	}

	acts, err := svcs.reconciler.ListActivities(ctx, c.activities)
	if err != nil {
		return fmt.Errorf("could not list activities: %w", err)
	}
	if len(acts) == 0 {
		return nil
	}

	if c.format == formatTable {
		fmt.Fprintln(c.rootCmd.Stdout)
	}
	return wrapPrintErr(p.PrintActivities(acts))
}
