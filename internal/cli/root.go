package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scimuse/scimuse/internal/bootstrap"
	"github.com/scimuse/scimuse/internal/config"
)

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "scimuse",
		Short:         "Question answering over ingested scientific PDFs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newIngestCommand(), newChatCommand())
	return root
}

// withApp wires the application graph for one command invocation and tears
// it down afterwards, including the optional metrics listener.
func withApp(cmd *cobra.Command, run func(ctx context.Context, app *bootstrap.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.MetricsAddr != "" {
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: app.Metrics.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.Logger.Warn("metrics_listener_failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer server.Close()
	}

	return run(ctx, app)
}
