package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-blog-client/apimodel"
	"github.com/jrsteele09/go-blog-client/internal/apifake"
	"github.com/jrsteele09/go-blog-client/internal/app"
	"github.com/jrsteele09/go-blog-client/lifecycle"
	"github.com/jrsteele09/go-blog-client/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newRunCommand keeps the stored session fresh until interrupted. SIGUSR1 and SIGUSR2 stand in for the
// host app moving to the background and back to the foreground.
func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the session's access token fresh until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(opts.cfg.GetAppName())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withApp(ctx, func(a *app.App) error {
				unsubscribe := a.Store.Subscribe(func(s session.Session) {
					if !s.IsLoggedIn {
						log.Info().Msg("Session ended")
						return
					}
					log.Info().Str("username", s.Identity.Username).Msg("Session updated")
				})
				defer unsubscribe()

				if !a.Store.IsLoggedIn() {
					log.Warn().Msg("No stored session, log in first")
				}

				states := lifecycle.NotifySignals(ctx, syscall.SIGUSR1, syscall.SIGUSR2)
				log.Info().Int("pid", os.Getpid()).Msg("Running, SIGUSR1 backgrounds and SIGUSR2 foregrounds")
				a.Monitor.Run(ctx, states)
				log.Info().Msg("Stopped")
				return nil
			})
		},
	}
}

func newDevServerCommand(opts *rootOptions) *cobra.Command {
	var (
		addr       string
		accessTTL  time.Duration
		rotate     bool
		seedUser   string
		seedPasswd string
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve an in-memory blog API for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			displayAppname(opts.cfg.GetAppName() + " API")

			api := apifake.New(
				apifake.WithEnv(opts.cfg.GetEnv()),
				apifake.WithAccessTTL(accessTTL),
				apifake.WithRotation(rotate),
			)
			if seedUser != "" {
				if _, err := api.Register(apimodel.SignupRequest{
					Username:  seedUser,
					Password:  seedPasswd,
					Email:     seedUser + "@example.com",
					FirstName: seedUser,
					LastName:  "Dev",
				}); err != nil {
					return fmt.Errorf("seed user: %w", err)
				}
			}
			for _, route := range api.Routes() {
				log.Debug().Str("route", route).Msg("Registered")
			}

			server := &http.Server{Addr: addr, Handler: api, ReadHeaderTimeout: 10 * time.Second}
			errs := make(chan error, 1)
			go func() { errs <- listenAndServe(server) }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
			}
			return shutdown(server)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	cmd.Flags().DurationVar(&accessTTL, "access-ttl", apifake.DefaultAccessTTL, "lifetime of issued access tokens")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "rotate refresh tokens on every refresh")
	cmd.Flags().StringVar(&seedUser, "seed-user", "demo", "account created at start up, empty for none")
	cmd.Flags().StringVar(&seedPasswd, "seed-password", "demo-password", "password of the seeded account")
	return cmd
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
