package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/semesterplan/internal/auth"
	"github.com/example/semesterplan/internal/metrics"
	"github.com/example/semesterplan/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the web UI and import endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			m := metrics.NewManager(metrics.WithGoCollectors())
			svc, err := a.importService(m)
			if err != nil {
				return err
			}

			ws := &web.Server{
				Auth:           auth.NewStore(a.db, a.cfg.CookieHashKey, a.cfg.CookieBlockKey),
				Importer:       svc,
				Metrics:        m,
				Log:            a.log,
				BaseURL:        a.cfg.BaseURL,
				MaxUploadBytes: a.cfg.MaxUploadBytes,
			}
			return web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
