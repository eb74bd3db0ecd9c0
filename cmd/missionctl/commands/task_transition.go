package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/app/task"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/model"
)

type TaskTransitionCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id     string
	status string
	format string

	progress       int
	progressSet    bool
	actualCost     float64
	actualCostSet  bool
	description    string
	descriptionSet bool
	priority       string
	assignee       string
	assigneeSet    bool
	eta            string
	tags           []string
	clearTags      bool
}

// NewTaskTransitionCommand returns the task transition command.
func NewTaskTransitionCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskTransitionCommand {
	c := &TaskTransitionCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("transition", "Move a task to a new status and/or update its fields.")
	c.Cmd.Arg("id", "Task ID.").Required().StringVar(&c.id)
	c.Cmd.Flag("status", "Target status (queued, active, completed, failed), the current one is kept when missing.").Short('s').StringVar(&c.status)
	c.Cmd.Flag("progress", "Progress percent (0-100).").IsSetByUser(&c.progressSet).IntVar(&c.progress)
	c.Cmd.Flag("actual-cost", "Actual cost spent.").IsSetByUser(&c.actualCostSet).Float64Var(&c.actualCost)
	c.Cmd.Flag("description", "Task description.").IsSetByUser(&c.descriptionSet).StringVar(&c.description)
	c.Cmd.Flag("priority", "Task priority (low, normal, high).").EnumVar(&c.priority,
		string(model.TaskPriorityLow), string(model.TaskPriorityNormal), string(model.TaskPriorityHigh))
	c.Cmd.Flag("assignee", "Task assignee.").IsSetByUser(&c.assigneeSet).StringVar(&c.assignee)
	c.Cmd.Flag("eta", "Estimated completion time in RFC3339 format.").StringVar(&c.eta)
	c.Cmd.Flag("tag", "Replaces the task tags (repeatable).").Short('t').StringsVar(&c.tags)
	c.Cmd.Flag("clear-tags", "Removes all the task tags.").BoolVar(&c.clearTags)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c TaskTransitionCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskTransitionCommand) Run(ctx context.Context) error {
	update, err := c.update()
	if err != nil {
		return err
	}

	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	agg, err := svcs.tasks.Transition(ctx, task.TransitionRequest{
		TaskID: c.id,
		Status: model.TaskStatus(c.status),
		Update: update,
	})
	if err != nil {
		return fmt.Errorf("could not transition task: %w", err)
	}

	return wrapPrintErr(c.rootCmd.printer(c.format).PrintTask(*agg))
}

func (c TaskTransitionCommand) update() (model.TaskUpdate, error) {
	var u model.TaskUpdate

	if c.progressSet {
		u.ProgressPercent = &c.progress
	}
	if c.actualCostSet {
		u.ActualCost = &c.actualCost
	}
	if c.descriptionSet {
		u.Description = &c.description
	}
	if c.priority != "" {
		p := model.TaskPriority(c.priority)
		u.Priority = &p
	}
	if c.assigneeSet {
		u.Assignee = &c.assignee
	}
	if c.eta != "" {
		eta, err := time.Parse(time.RFC3339, c.eta)
		if err != nil {
			return u, fmt.Errorf("invalid --eta value: %w", err)
		}
		u.ETA = &eta
	}

	switch {
	case c.clearTags && len(c.tags) > 0:
		return u, fmt.Errorf("--tag and --clear-tags can't be used together")
	case c.clearTags:
		u.Tags = []string{}
	case len(c.tags) > 0:
		u.Tags = c.tags
	}

	return u, nil
}
