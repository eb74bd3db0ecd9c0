package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/model"
	"github.com/slok/missionctl/internal/utils/kv"
)

type TaskCreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	title         string
	description   string
	priority      string
	estimatedCost float64
	tags          []string
	metaSpecs     []string
	format        string
}

// NewTaskCreateCommand returns the task create command.
func NewTaskCreateCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskCreateCommand {
	c := &TaskCreateCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("create", "Create a new queued task.")
	c.Cmd.Arg("title", "Task title.").Required().StringVar(&c.title)
	c.Cmd.Flag("description", "Task description.").Short('d').StringVar(&c.description)
	c.Cmd.Flag("priority", "Task priority (low, normal, high).").Default(string(model.TaskPriorityNormal)).EnumVar(&c.priority,
		string(model.TaskPriorityLow), string(model.TaskPriorityNormal), string(model.TaskPriorityHigh))
	c.Cmd.Flag("estimated-cost", "Estimated cost of the task.").Float64Var(&c.estimatedCost)
	c.Cmd.Flag("tag", "Task tag (repeatable).").Short('t').StringsVar(&c.tags)
	c.Cmd.Flag("meta", "Task metadata in KEY=VALUE format (repeatable).").Short('m').StringsVar(&c.metaSpecs)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c TaskCreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskCreateCommand) Run(ctx context.Context) error {
	metadata, err := kv.ParseSpecs(c.metaSpecs)
	if err != nil {
		return fmt.Errorf("invalid --meta value: %w", err)
	}

	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	agg, err := svcs.tasks.Create(ctx, task.CreateRequest{
		Title:         c.title,
		Description:   c.description,
		Priority:      model.TaskPriority(c.priority),
		EstimatedCost: c.estimatedCost,
		Tags:          c.tags,
		Metadata:      metadata,
	})
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}

	return wrapPrintErr(c.rootCmd.printer(c.format).PrintTask(*agg))
}
