package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/missionctl/cmd/missionctl/commands"
	"github.com/slok/missionctl/internal/log"
	loglogrus "github.com/slok/missionctl/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"
)

// Run runs the main application.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	app := kingpin.New("missionctl", "Personal ops dashboard: task lifecycle and real-time sync.")
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	// Setup commands (registers flags).
	serveCmd := commands.NewServeCommand(rootCmd, app)
	statusCmd := commands.NewStatusCommand(rootCmd, app)
	syncCmd := commands.NewSyncCommand(rootCmd, app)

	// Task subcommands share a parent command.
	taskCmd := app.Command("task", "Manage tasks.")
	taskCreateCmd := commands.NewTaskCreateCommand(rootCmd, taskCmd)
	taskListCmd := commands.NewTaskListCommand(rootCmd, taskCmd)
	taskShowCmd := commands.NewTaskShowCommand(rootCmd, taskCmd)
	taskTransitionCmd := commands.NewTaskTransitionCommand(rootCmd, taskCmd)
	taskRmCmd := commands.NewTaskRmCommand(rootCmd, taskCmd)
	taskLogCmd := commands.NewTaskLogCommand(rootCmd, taskCmd)

	usageCmd := app.Command("usage", "Track the API usage and the budgets.")
	usageLogCmd := commands.NewUsageLogCommand(rootCmd, usageCmd)
	usageShowCmd := commands.NewUsageShowCommand(rootCmd, usageCmd)

	cmds := map[string]commands.Command{
		serveCmd.Name():          serveCmd,
		statusCmd.Name():         statusCmd,
		syncCmd.Name():           syncCmd,
		taskCreateCmd.Name():     taskCreateCmd,
		taskListCmd.Name():       taskListCmd,
		taskShowCmd.Name():       taskShowCmd,
		taskTransitionCmd.Name(): taskTransitionCmd,
		taskRmCmd.Name():         taskRmCmd,
		taskLogCmd.Name():        taskLogCmd,
		usageLogCmd.Name():       usageLogCmd,
		usageShowCmd.Name():      usageShowCmd,
	}

	// Parse command.
	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid command configuration: %w", err)
	}

	// Set standard input/output.
	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr

	// Printer output and log lines share the terminal, the printer commands
	// only log when debugging.
	printerCommands := map[string]bool{
		"status":     true,
		"task list":  true,
		"task show":  true,
		"usage show": true,
	}
	if printerCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}

	if rootCmd.NoColor {
		color.NoColor = true
	}

	// Set logger.
	rootCmd.Logger = getLogger(*rootCmd)

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				rootCmd.Logger.Debugf("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// Execute command.
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				err := cmds[cmdName].Run(ctx)
				if err != nil {
					return fmt.Errorf("%q command failed: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// getLogger returns the application logger.
func getLogger(config commands.RootCommand) log.Logger {
	if config.NoLog {
		return log.Noop
	}

	logrusLog := logrus.New()
	logrusLog.Out = config.Stderr // Logs go to stderr so stdout only has the command output.
	logrusLogEntry := logrus.NewEntry(logrusLog)

	if config.Debug {
		logrusLogEntry.Logger.SetLevel(logrus.DebugLevel)
	}

	switch config.LoggerType {
	case commands.LoggerTypeDefault:
		logrusLogEntry.Logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !config.NoColor,
			DisableColors: config.NoColor,
		})
	case commands.LoggerTypeJSON:
		logrusLogEntry.Logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger := loglogrus.NewLogrus(logrusLogEntry).WithValues(log.Kv{
		"version": Version,
	})

	logger.Debugf("Debug level is enabled")

	return logger
}

func main() {
	ctx := context.Background()
	err := Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
