package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/app/usage"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/model"
)

type UsageLogCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	model     string
	tokensIn  int64
	tokensOut int64
	cost      float64
}

// NewUsageLogCommand returns the usage log command.
func NewUsageLogCommand(rootCmd *RootCommand, usageCmd *kingpin.CmdClause) *UsageLogCommand {
	c := &UsageLogCommand{rootCmd: rootCmd}

	c.Cmd = usageCmd.Command("log", "Account an API request on today's totals of its model.")
	c.Cmd.Arg("model", "Model that served the request.").Required().StringVar(&c.model)
	c.Cmd.Flag("tokens-in", "Input tokens.").Int64Var(&c.tokensIn)
	c.Cmd.Flag("tokens-out", "Output tokens.").Int64Var(&c.tokensOut)
	c.Cmd.Flag("cost", "Cost of the request.").Float64Var(&c.cost)

	return c
}

func (c UsageLogCommand) Name() string { return c.Cmd.FullCommand() }

func (c UsageLogCommand) Run(ctx context.Context) error {
	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	u, err := svcs.usage.Log(ctx, model.UsageRecord{
		Model:     c.model,
		TokensIn:  c.tokensIn,
		TokensOut: c.tokensOut,
		Cost:      c.cost,
	})
	if err != nil {
		return fmt.Errorf("could not log api usage: %w", err)
	}

	c.rootCmd.Logger.Infof("API usage logged: %s has %d requests (%.4f) on %s", u.Model, u.Requests, u.Cost, u.UsageDate)
	return nil
}

type UsageShowCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	start  string
	end    string
	format string
}

// NewUsageShowCommand returns the usage show command.
func NewUsageShowCommand(rootCmd *RootCommand, usageCmd *kingpin.CmdClause) *UsageShowCommand {
	c := &UsageShowCommand{rootCmd: rootCmd}

	c.Cmd = usageCmd.Command("show", "Show the budget status and the API usage per day and model.")
	c.Cmd.Flag("start", "First day (YYYY-MM-DD), defaults to 30 days before the end.").StringVar(&c.start)
	c.Cmd.Flag("end", "Last day (YYYY-MM-DD), defaults to today.").StringVar(&c.end)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c UsageShowCommand) Name() string { return c.Cmd.FullCommand() }

func (c UsageShowCommand) Run(ctx context.Context) error {
	from, err := parseDay(c.start)
	if err != nil {
		return err
	}
	to, err := parseDay(c.end)
	if err != nil {
		return err
	}

	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	budget, err := svcs.usage.BudgetStatus(ctx)
	if err != nil {
		return fmt.Errorf("could not get budget status: %w", err)
	}
	rows, err := svcs.usage.List(ctx, usage.ListRequest{From: from, To: to})
	if err != nil {
		return fmt.Errorf("could not list api usage: %w", err)
	}

	p := c.rootCmd.printer(c.format)
	if err := p.PrintBudget(*budget); err != nil {
		return wrapPrintErr(err)
	}
	if len(rows) == 0 && c.format == formatTable {
		return nil
	}
	if c.format == formatTable {
		fmt.Fprintln(c.rootCmd.Stdout)
	}

	return wrapPrintErr(p.PrintAPIUsage(rows))
}

func parseDay(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	day, err := time.Parse(model.UsageDateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD: %w", raw, model.ErrNotValid)
	}

	return day, nil
}
