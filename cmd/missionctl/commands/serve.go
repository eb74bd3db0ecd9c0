package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	"github.com/oklog/run"

	"github.com/slok/missionctl/internal/broadcast"
	"github.com/slok/missionctl/internal/conventions"
	"github.com/slok/missionctl/internal/server"
)

// ServeCommand runs the dashboard server.
type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr       string
	sessionQueueSize int
	shutdownTimeout  time.Duration
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Run the dashboard REST API and the real-time websocket endpoint.")
	c.Cmd.Flag("listen", "HTTP listen address.").Default(conventions.DefaultListenAddress).StringVar(&c.listenAddr)
	c.Cmd.Flag("session-queue-size", "Frames buffered per viewer before it's considered not writable.").Default(fmt.Sprint(conventions.DefaultSessionQueueSize)).IntVar(&c.sessionQueueSize)
	c.Cmd.Flag("shutdown-timeout", "Time to wait for in-flight requests on shutdown.").Default("10s").DurationVar(&c.shutdownTimeout)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	hub, err := broadcast.NewHub(broadcast.HubConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create hub: %w", err)
	}

	svcs, err := newServices(ctx, c.rootCmd, hub)
	if err != nil {
		return err
	}
	defer svcs.close()

	if !c.rootCmd.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.New(server.Config{
		Tasks:            svcs.tasks,
		Details:          svcs.details,
		Dashboard:        svcs.dashboard,
		Reconciler:       svcs.reconciler,
		Chat:             svcs.chat,
		Usage:            svcs.usage,
		Hub:              hub,
		Logger:           logger,
		SessionQueueSize: c.sessionQueueSize,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var g run.Group

	// HTTP server.
	{
		g.Add(
			func() error {
				logger.Infof("Dashboard server listening on %s", c.listenAddr)
				err := httpServer.ListenAndServe()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				// Shutdown doesn't track hijacked websocket connections.
				srv.CloseSessions()

				ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(ctx); err != nil {
					logger.Errorf("Could not shutdown http server: %s", err)
				}
			},
		)
	}

	// Context cancellation (from parent signal handling).
	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	err = g.Run()
	logger.Infof("Dashboard server stopped")
	return err
}
