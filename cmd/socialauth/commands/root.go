package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/socialauth/internal/app"
	"github.com/florianilch/socialauth/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return newRootCommand(os.Stdin, os.Stdout).Run(ctx, args)
}

func newRootCommand(in io.Reader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "socialauth",
		Usage:  "OAuth2 social login client",
		Reader: in,
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file (default: <user config dir>/socialauth/config.toml if present)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "backend--base-url",
				Usage: "authentication backend base URL",
				Value: app.DefaultConfigBackendBaseURL,
			},
			&cli.StringFlag{
				Name:  "storage--type",
				Usage: "token storage (file|keyring|memory)",
				Value: string(app.DefaultConfigStorageType),
			},
			&cli.StringFlag{
				Name:  "storage--file",
				Usage: "token file for file storage",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			statusCommand(),
			refreshCommand(),
			preuserCommand(),
			tokensCommand(),
		},
	}
}

// appAction loads configuration, sets up logging and hands a ready App to fn.
func appAction(fn func(ctx context.Context, cmd *cli.Command, a *app.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		configPath := cmd.String("config")
		if configPath == "" {
			configPath = defaultConfigPath()
		}

		cfg, err := loadConfig(configPath, cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, observability.Options{
			Level:    cfg.LogLevel,
			Format:   string(cfg.LogFormat),
			Exporter: cfg.LogExporter,
		})
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.WarnContext(ctx, "observability shutdown failed", "error", err)
			}
		}()

		application, err := app.New(cfg, app.WithOutput(cmd.Root().Writer))
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}

		return fn(ctx, cmd, application)
	}
}
