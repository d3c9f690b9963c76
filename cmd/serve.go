package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/taskwatch/internal/adapters/bridge"
	"github.com/bnema/taskwatch/internal/adapters/kv/factory"
	"github.com/bnema/taskwatch/internal/application"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(app *app) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background agent and the shell bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if listenAddr == "" {
				listenAddr = app.config.ListenAddr
			}
			listener, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listenAddr, err)
			}
			return runServe(ctx, app, listener, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Bridge listen address (default from listen.addr)")

	return cmd
}

func runServe(ctx context.Context, app *app, listener net.Listener, out io.Writer) error {
	state := app.state
	logger := app.logger

	scheduler := application.NewScheduler(app.config.Scheduler, logger.With("component", "scheduler"))
	for _, job := range backgroundJobs(app) {
		scheduler.Register(job)
	}

	handler := bridge.NewServer(state.Commands, app.validator, app.hub, bridge.ServerOptions{
		OriginPatterns: originPatterns(app.config.ExtensionOrigin),
	}, logger.With("component", "bridge")).Handler()
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	_, _ = fmt.Fprintf(out, "taskwatch listening on %s\n", listener.Addr())

	if _, err := state.Outbox.Flush(ctx); err != nil {
		logger.Warn("startup flush failed", "error", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return scheduler.Run(groupCtx)
	})
	group.Go(func() error {
		err := app.backend.Watch(groupCtx, logger.With("component", "watch"), func() {
			if _, err := state.Outbox.Flush(groupCtx); err != nil {
				logger.Warn("flush after store change failed", "error", err)
			}
		})
		if errors.Is(err, factory.ErrWatchUnsupported) {
			logger.Debug("store change notifications unavailable", "backend", app.backend.Scheme)
			return nil
		}
		return err
	})
	group.Go(func() error {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve bridge: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := group.Wait()
	logger.Info("taskwatch stopped")
	return err
}

func backgroundJobs(app *app) []application.Job {
	state := app.state
	return []application.Job{
		{
			Name:     "poll",
			Interval: app.config.PollInterval,
			Run: func(ctx context.Context) error {
				_, err := state.Tasks.Poll(ctx)
				if application.IsAuthFailure(err) {
					return nil
				}
				return err
			},
		},
		{
			Name:     "flush",
			Interval: app.config.FlushInterval,
			Run: func(ctx context.Context) error {
				_, err := state.Outbox.Flush(ctx)
				return err
			},
		},
		{
			Name:     "sweep",
			Interval: app.config.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := state.Outbox.SweepExpired(ctx)
				return err
			},
		},
	}
}

// originPatterns reduces the extension origin to the host pattern the
// websocket acceptor matches against.
func originPatterns(extensionOrigin string) []string {
	parsed, err := url.Parse(extensionOrigin)
	if err != nil || parsed.Host == "" {
		return nil
	}
	return []string{parsed.Host}
}
