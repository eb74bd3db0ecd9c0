package printer

import "github.com/slok/missionctl/internal/model"

// Printer knows how to print the dashboard information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.Task) error
	PrintTask(task model.TaskAggregate) error
	PrintDashboard(snap model.DashboardSnapshot) error
	PrintActivities(activities []model.Activity) error
	PrintAPIUsage(usage []model.APIUsage) error
	PrintBudget(budget model.BudgetStatus) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
)
