package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/missionctl/internal/app/reconcile"
	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/storage/io"
)

type SyncCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	path   string
	format string
}

// NewSyncCommand returns the sync command.
func NewSyncCommand(rootCmd *RootCommand, app *kingpin.Application) *SyncCommand {
	c := &SyncCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("sync", "Apply a YAML telemetry file (costs and activities) to the dashboard.")
	c.Cmd.Arg("file", "Path to the telemetry YAML file.").Required().StringVar(&c.path)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c SyncCommand) Name() string { return c.Cmd.FullCommand() }

func (c SyncCommand) Run(ctx context.Context) error {
	path, err := filepath.Abs(c.path)
	if err != nil {
		return fmt.Errorf("could not resolve telemetry file path: %w", err)
	}

	repo := io.NewTelemetryYAMLRepository(os.DirFS(filepath.Dir(path)))
	telemetry, err := repo.GetTelemetry(ctx, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("could not load telemetry: %w", err)
	}

	svcs, err := newServices(ctx, c.rootCmd, broadcast.Noop)
	if err != nil {
		return err
	}
	defer svcs.close()

	snap, err := svcs.reconciler.Reconcile(ctx, reconcile.Request(telemetry))
	if err != nil && snap == nil {
		return fmt.Errorf("could not sync telemetry: %w", err)
	}

	if perr := c.rootCmd.printer(c.format).PrintDashboard(*snap); perr != nil {
		return wrapPrintErr(perr)
	}

	// The applied part is already stored and printed, the failure still has to reach the exit code.
	if err != nil {
		return fmt.Errorf("telemetry partially applied: %w", err)
	}

	return nil
}
