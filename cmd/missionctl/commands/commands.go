package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/log"
	"github.com/slok/missionctl/internal/printer"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DBPath     string
	// API spend limits of a UTC day and month.
	DailyBudget   float64
	MonthlyBudget float64

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger and table colors.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := conventions.DBPath(filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir))
	app.Flag("db-path", "Path to the SQLite database file.").Envar("MISSIONCTL_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("daily-budget", "API spend limit of a UTC day.").Default(fmt.Sprint(conventions.DefaultDailyBudget)).Float64Var(&c.DailyBudget)
	app.Flag("monthly-budget", "API spend limit of a UTC month.").Default(fmt.Sprint(conventions.DefaultMonthlyBudget)).Float64Var(&c.MonthlyBudget)

	return c
}

func formatFlag(cmd *kingpin.CmdClause, format *string) {
	cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(format, formatTable, formatJSON)
}

func (r *RootCommand) printer(format string) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(r.Stdout)
	default:
		return printer.NewTablePrinter(r.Stdout)
	}
}

func wrapPrintErr(err error) error {
	if err != nil {
		return fmt.Errorf("could not print: %w", err)
	}
	return nil
}
