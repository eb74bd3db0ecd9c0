package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/model"
)

type TaskListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter string
	format       string
}

// NewTaskListCommand returns the task list command.
func NewTaskListCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskListCommand {
	c := &TaskListCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("list", "List all tasks, newest first.")
	c.Cmd.Flag("status", "Filter by status (queued, active, completed, failed).").StringVar(&c.statusFilter)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c TaskListCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskListCommand) Run(ctx context.Context) error {
	status := model.TaskStatus(c.statusFilter)
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid status filter: %s (must be: queued, active, completed, failed)", c.statusFilter)
	}

	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	tasks, err := svcs.tasks.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	if status != "" {
		tasks = slices.DeleteFunc(tasks, func(t model.Task) bool { return t.Status != status })
	}

	return wrapPrintErr(c.rootCmd.printer(c.format).PrintTaskList(tasks))
}
