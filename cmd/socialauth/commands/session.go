package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/socialauth/internal/app"
	"github.com/florianilch/socialauth/internal/backend"
	"github.com/florianilch/socialauth/internal/session"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "log in through the backend's OAuth2 provider",
		ArgsUsage: "[provider]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "login--provider",
				Usage: "OAuth2 provider (e.g. google, naver); default: login.provider from config, else " + app.DefaultConfigLoginProvider,
			},
			&cli.DurationFlag{
				Name:  "login--timeout",
				Usage: "how long to wait for the browser to complete login",
				Value: app.DefaultConfigLoginTimeout,
			},
			&cli.IntFlag{
				Name:  "callback--port",
				Usage: "local port the backend redirects to after login",
				Value: app.DefaultConfigCallbackPort,
			},
			&cli.StringFlag{
				Name:  "callback--path",
				Usage: "local path the backend redirects to after login",
				Value: app.DefaultConfigCallbackPath,
			},
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "print the login URL instead of opening a browser",
			},
		},
		Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			// An empty provider falls back to login.provider, which --login--provider feeds.
			if err := a.Login(ctx, cmd.Args().First(), !cmd.Bool("no-browser")); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.Root().Writer, "Logged in.")
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "end the session at the backend and remove stored tokens",
		Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if err := a.Logout(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.Root().Writer, "Logged out.")
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show whether a session is stored",
		Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			st, err := a.Status(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.Root().Writer, st)
			return nil
		}),
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "exchange the stored refresh token for a new token pair",
		Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			if err := a.Refresh(ctx); err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintln(cmd.Root().Writer, "Tokens refreshed.")
			return nil
		}),
	}
}

func preuserCommand() *cli.Command {
	return &cli.Command{
		Name:  "preuser",
		Usage: "call the PREUSER-only test endpoint",
		Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
			data, err := a.Preuser(ctx)
			if err != nil {
				return describe(err)
			}
			_, _ = fmt.Fprintln(cmd.Root().Writer, data)
			return nil
		}),
	}
}

// describe turns session failures into messages that tell the user what to do next.
func describe(err error) error {
	var msgErr *backend.ServerMessageError
	switch {
	case errors.Is(err, session.ErrLoginRequired), errors.Is(err, session.ErrMissingCredential):
		return fmt.Errorf("not logged in, run `socialauth login`: %w", err)
	case errors.As(err, &msgErr):
		return fmt.Errorf("server refused request: %s", msgErr.Message)
	case errors.Is(err, session.ErrNetwork):
		return fmt.Errorf("cannot communicate with the server: %w", err)
	default:
		return err
	}
}
