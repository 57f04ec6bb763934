package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"wg-lifecycle/wg-server/internal/auth"
	apiHandler "wg-lifecycle/wg-server/internal/handler/api"
	appmw "wg-lifecycle/wg-server/internal/middleware"
)

func NewServeCommand(opts *Options) *cobra.Command {
	var skipUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bring the interface up and reconcile it periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !skipUp {
				if err := a.syncer.Up(ctx); err != nil {
					return err
				}
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return a.syncer.Run(ctx)
			})
			if a.cfg.API.Listen != "" {
				srv, err := a.httpServer()
				if err != nil {
					return err
				}
				g.Go(func() error {
					a.log.WithField("addr", srv.Addr).Info("admin api listening")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			a.log.WithField("iface", a.cfg.Interface).Info("wg-server running")
			err = g.Wait()
			a.log.Info("wg-server stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&skipUp, "no-up", false, "do not create or configure the interface on start")

	return cmd
}

func (a *app) httpServer() (*http.Server, error) {
	iss, err := auth.NewIssuer(a.cfg.API.TokenSecret)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(appmw.RequestLog(a.log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.promReg, promhttp.HandlerOpts{}))

	var passes apiHandler.PassLister
	if a.journal != nil {
		passes = a.journal
	}
	admin := auth.Credentials{User: a.cfg.API.AdminUser, PasswordHash: a.cfg.API.AdminPasswordHash}
	apiHandler.NewHandler(a.reg, a.syncer, passes, iss, admin, a.log).RegisterRoutes(r)

	return &http.Server{
		Addr:              a.cfg.API.Listen,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
