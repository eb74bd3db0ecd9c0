package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/broadcast"
)

type TaskRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	ids []string
}

// NewTaskRmCommand returns the task rm command.
func NewTaskRmCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskRmCommand {
	c := &TaskRmCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("rm", "Delete tasks with their logs, timeline and sub-agents.")
	c.Cmd.Arg("id", "Task ID (repeatable).").Required().StringsVar(&c.ids)

	return c
}

func (c TaskRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskRmCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	for _, id := range c.ids {
		if err := svcs.tasks.Delete(ctx, id); err != nil {
			return fmt.Errorf("could not delete task %s: %w", id, err)
		}
		fmt.Fprintln(c.rootCmd.Stdout, id)
	}

	return nil
}
