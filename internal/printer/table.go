package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/slok/missionctl/internal/model"
)

var statusColors = map[model.TaskStatus]func(format string, a ...any) string{
	model.TaskStatusQueued:    color.YellowString,
	model.TaskStatusActive:    color.CyanString,
	model.TaskStatusCompleted: color.GreenString,
	model.TaskStatusFailed:    color.RedString,
}

func colorStatus(s model.TaskStatus) string {
	if f, ok := statusColors[s]; ok {
		return f("%s", s)
	}
	return string(s)
}

// TablePrinter prints the dashboard information in a table format.
type TablePrinter struct {
	writer io.Writer
	now    func() time.Time
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w, now: time.Now}
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tPRIORITY\tPROGRESS\tCREATED")
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n",
			task.ID,
			task.Title,
			colorStatus(task.Status),
			task.Priority,
			task.ProgressPercent,
			TimeAgo(task.CreatedAt, t.now()),
		)
	}

	return nil
}

// PrintTask prints a task with its recent logs, timeline and sub-agents.
func (t *TablePrinter) PrintTask(task model.TaskAggregate) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", task.ID)
	fmt.Fprintf(t.writer, "Title:      %s\n", task.Title)
	fmt.Fprintf(t.writer, "Status:     %s\n", colorStatus(task.Status))
	fmt.Fprintf(t.writer, "Priority:   %s\n", task.Priority)
	fmt.Fprintf(t.writer, "Progress:   %d%%\n", task.ProgressPercent)
	fmt.Fprintf(t.writer, "Cost:       %.2f (estimated %.2f)\n", task.ActualCost, task.EstimatedCost)
	if task.Description != "" {
		fmt.Fprintf(t.writer, "Desc:       %s\n", task.Description)
	}
	if task.Assignee != nil {
		fmt.Fprintf(t.writer, "Assignee:   %s\n", *task.Assignee)
	}
	if len(task.Tags) > 0 {
		fmt.Fprintf(t.writer, "Tags:       %s\n", strings.Join(task.Tags, ", "))
	}
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(task.CreatedAt))
	if task.StartedAt != nil {
		fmt.Fprintf(t.writer, "Started:    %s\n", FormatTimestamp(*task.StartedAt))
	}
	if task.CompletedAt != nil {
		fmt.Fprintf(t.writer, "Completed:  %s\n", FormatTimestamp(*task.CompletedAt))
	}
	if task.ETA != nil {
		fmt.Fprintf(t.writer, "ETA:        %s\n", FormatTimestamp(*task.ETA))
	}

	if len(task.Agents) > 0 {
		fmt.Fprintln(t.writer, "\nAgents:")
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  ID\tAGENT\tSTATUS\tCOST\tSTARTED")
		for _, a := range task.Agents {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%.2f\t%s\n", a.ID, a.AgentID, a.Status, a.Cost, TimeAgo(a.StartedAt, t.now()))
		}
		tw.Flush()
	}

	if len(task.Events) > 0 {
		fmt.Fprintln(t.writer, "\nTimeline:")
		for _, e := range task.Events {
			fmt.Fprintf(t.writer, "  %s  [%s] %s\n", FormatTimestamp(e.Timestamp), e.EventType, e.Title)
		}
	}

	if len(task.Logs) > 0 {
		fmt.Fprintln(t.writer, "\nLogs:")
		for _, l := range task.Logs {
			fmt.Fprintf(t.writer, "  %s  %-5s %s\n", FormatTimestamp(l.Timestamp), strings.ToUpper(string(l.Level)), l.Message)
		}
	}

	return nil
}

// PrintDashboard prints the dashboard status and the task rollup.
func (t *TablePrinter) PrintDashboard(snap model.DashboardSnapshot) error {
	fmt.Fprintf(t.writer, "Cost today:  %.2f\n", snap.CostToday)
	fmt.Fprintf(t.writer, "Cost total:  %.2f\n", snap.CostTotal)
	fmt.Fprintf(t.writer, "Trading:     %s (equity %.2f, %d positions)\n", snap.Trading.Status, snap.Trading.Equity, snap.Trading.Positions)
	fmt.Fprintf(t.writer, "Updated:     %s\n", FormatTimestamp(snap.LastUpdated))
	fmt.Fprintf(t.writer, "Tasks:       %d queued, %d active, %d completed, %d failed\n",
		snap.TaskSummary.Queued,
		snap.TaskSummary.Active,
		snap.TaskSummary.Completed,
		snap.TaskSummary.Failed,
	)

	return nil
}

// PrintActivities prints the activity feed in a table format.
func (t *TablePrinter) PrintActivities(activities []model.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TYPE\tTITLE\tWHEN")
	for _, a := range activities {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Type, a.Title, TimeAgo(a.Timestamp, t.now()))
	}

	return nil
}

// PrintAPIUsage prints the day and model API usage totals in a table format.
func (t *TablePrinter) PrintAPIUsage(usage []model.APIUsage) error {
	if len(usage) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "DAY\tMODEL\tREQUESTS\tTOKENS IN\tTOKENS OUT\tCOST")
	for _, u := range usage {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.4f\n", u.UsageDate, u.Model, u.Requests, u.TokensIn, u.TokensOut, u.Cost)
	}

	return nil
}

// PrintBudget prints the API spend against the budgets, exceeded ones in red.
func (t *TablePrinter) PrintBudget(budget model.BudgetStatus) error {
	fmt.Fprintf(t.writer, "Budget today: %s\n", budgetWindow(budget.Daily))
	fmt.Fprintf(t.writer, "Budget month: %s\n", budgetWindow(budget.Monthly))
	return nil
}

func budgetWindow(w model.BudgetWindow) string {
	s := fmt.Sprintf("%.2f / %.2f", w.Used, w.Limit)
	if w.Exceeded() {
		return color.RedString("%s (exceeded)", s)
	}
	return s
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
