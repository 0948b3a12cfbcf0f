package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jrsteele09/go-blog-client/auth"
	"github.com/jrsteele09/go-blog-client/internal/app"
	"github.com/jrsteele09/go-blog-client/internal/config"
	"github.com/jrsteele09/go-blog-client/internal/logging"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const passwordVar = "BLOG_PASSWORD"

type rootOptions struct {
	envFile  string
	apiURL   string
	logLevel string

	cfg       config.Config
	logCloser io.Closer
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "blogctl",
		Short:         "Blog client session tool",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logCloser != nil {
				return opts.logCloser.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "blog API base URL, overrides "+config.APIBaseURLVar)
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides "+config.LogLevelVar)

	cmd.AddCommand(
		newLoginCommand(opts),
		newGuestCommand(opts),
		newSignupCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newBlogsCommand(opts),
		newRunCommand(opts),
		newDevServerCommand(opts),
	)
	return cmd
}

func (o *rootOptions) setup() error {
	if o.apiURL != "" {
		if err := os.Setenv(config.APIBaseURLVar, o.apiURL); err != nil {
			return err
		}
	}
	if o.logLevel != "" {
		if err := os.Setenv(config.LogLevelVar, o.logLevel); err != nil {
			return err
		}
	}

	cfg, err := config.Load(o.envFile)
	if err != nil {
		return fmt.Errorf("load %s: %w", o.envFile, err)
	}
	o.cfg = cfg
	_, o.logCloser = logging.Setup(logging.Options{
		Level: cfg.GetLogLevel(),
		Env:   cfg.GetEnv(),
		File:  cfg.GetLogFile(),
	})
	return nil
}

// withApp builds the app for one command and tears it down afterwards
func (o *rootOptions) withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.New(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close app")
		}
	}()
	return fn(a)
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(passwordVar)
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Auth.LogIn(cmd.Context(), username, password); err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password, defaults to $"+passwordVar)
	return cmd
}

func newGuestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "guest",
		Short: "Start a read only guest session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Auth.LogInGuest(cmd.Context()); err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
}

func newSignupCommand(opts *rootOptions) *cobra.Command {
	var req auth.SignUpRequest
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv(passwordVar)
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Auth.SignUp(cmd.Context(), req); err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password, defaults to $"+passwordVar)
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "last name")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.Auth.LogOut(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	var profile bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				printSession(cmd.OutOrStdout(), a)
				if !profile || !a.Store.IsLoggedIn() {
					return nil
				}
				// renew first when the stored token is stale
				if err := a.Refresh.Check(cmd.Context()); err != nil {
					log.Warn().Err(err).Msg("Token check failed")
				}
				p, err := a.Auth.Profile(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Name:     %s %s\nEmail:    %s\n", p.FirstName, p.LastName, p.Email)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&profile, "profile", false, "also fetch the profile from the API")
	return cmd
}

func newBlogsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "blogs [id]",
		Short: "List blogs, or show one blog and its images",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					blogs, err := a.API.ListBlogs(cmd.Context())
					if err != nil {
						return err
					}
					for _, b := range blogs {
						fmt.Fprintf(out, "%4d  %-30s  %s\n", b.ID, b.Title, b.Author)
					}
					return nil
				}

				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid blog id %q", args[0])
				}
				blog, err := a.API.GetBlog(cmd.Context(), id)
				if err != nil {
					return err
				}
				images, err := a.API.BlogImages(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\nby %s, %s\n\n%s\n\n%d image(s)\n", blog.Title, blog.Author, blog.CreatedAt, blog.Body, len(images))
				return nil
			})
		},
	}
}

func printSession(out io.Writer, a *app.App) {
	snapshot := a.Store.Snapshot()
	if !snapshot.IsLoggedIn {
		fmt.Fprintln(out, "Not logged in")
		return
	}
	fmt.Fprintf(out, "User:     %s (id %d, role %s)\n", snapshot.Identity.Username, snapshot.Identity.ID, snapshot.Identity.Role)
	if snapshot.Identity.IsGuestSession() {
		fmt.Fprintln(out, "Session:  guest, not refreshed")
	}
	if exp, err := token.ExpiresAt(snapshot.AccessToken); err == nil {
		fmt.Fprintf(out, "Expires:  %s (in %s)\n", exp.Local().Format(time.RFC1123), time.Until(exp).Round(time.Second))
	}
	if next := a.Refresh.NextRefreshAt(); !next.IsZero() {
		fmt.Fprintf(out, "Refresh:  %s\n", next.Local().Format(time.RFC1123))
	}
}
