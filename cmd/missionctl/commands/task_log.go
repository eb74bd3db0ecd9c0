package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/app/taskdetail"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/model"
)

type TaskLogCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id      string
	message string
	level   string
}

// NewTaskLogCommand returns the task log command.
func NewTaskLogCommand(rootCmd *RootCommand, taskCmd *kingpin.CmdClause) *TaskLogCommand {
	c := &TaskLogCommand{rootCmd: rootCmd}

	c.Cmd = taskCmd.Command("log", "Append a log line to a task.")
	c.Cmd.Arg("id", "Task ID.").Required().StringVar(&c.id)
	c.Cmd.Arg("message", "Log message.").Required().StringVar(&c.message)
	c.Cmd.Flag("level", "Log level (info, warn, error).").Short('l').Default(string(model.LogLevelInfo)).EnumVar(&c.level,
		string(model.LogLevelInfo), string(model.LogLevelWarn), string(model.LogLevelError))

	return c
}

func (c TaskLogCommand) Name() string { return c.Cmd.FullCommand() }

func (c TaskLogCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	l, err := svcs.details.AppendLog(ctx, taskdetail.AppendLogRequest{
		TaskID:  c.id,
		Level:   model.LogLevel(c.level),
		Message: c.message,
	})
	if err != nil {
		return fmt.Errorf("could not append log: %w", err)
	}

	c.rootCmd.Logger.Infof("Log %d appended to task %s", l.ID, c.id)
	return nil
}
