package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/model"
)

type TaskShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id       string
	logLimit int
	format   string
}

// NewTaskShowCommand returns the task show command.
func NewTaskShowCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskShowCommand {
	c := &TaskShowCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("show", "Show a task with its recent logs, timeline and sub-agents.")
	c.Cmd.Arg("id", "Task ID.").Required().StringVar(&c.id)
	c.Cmd.Flag("logs", "Number of most recent logs to show.").Default(fmt.Sprint(conventions.EmbeddedLogLimit)).IntVar(&c.logLimit)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c TaskShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskShowCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	agg, err := svcs.details.GetAggregate(ctx, c.id, c.logLimit)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}
	if agg == nil {
		return fmt.Errorf("task %s: %w", c.id, model.ErrNotFound)
	}

	return wrapPrintErr(c.rootCmd.printer(c.format).PrintTask(*agg))
}
