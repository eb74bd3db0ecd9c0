package printer

import (
	"encoding/json"
	"io"

	"github.com/slok/missionctl/internal/model"
)

// JSONPrinter prints the dashboard information in JSON format, using the same
// representation the REST API returns.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintTaskList prints tasks in JSON format.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return j.encode(tasks)
}

// PrintTask prints a task aggregate in JSON format.
func (j *JSONPrinter) PrintTask(task model.TaskAggregate) error { return j.encode(task) }

// PrintDashboard prints the dashboard snapshot in JSON format.
func (j *JSONPrinter) PrintDashboard(snap model.DashboardSnapshot) error { return j.encode(snap) }

// PrintActivities prints the activity feed in JSON format.
func (j *JSONPrinter) PrintActivities(activities []model.Activity) error {
	if activities == nil {
		activities = []model.Activity{}
	}
	return j.encode(activities)
}

// PrintAPIUsage prints the API usage totals in JSON format.
func (j *JSONPrinter) PrintAPIUsage(usage []model.APIUsage) error {
	if usage == nil {
		usage = []model.APIUsage{}
	}
	return j.encode(usage)
}

// PrintBudget prints the budget status in JSON format.
func (j *JSONPrinter) PrintBudget(budget model.BudgetStatus) error { return j.encode(budget) }

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
