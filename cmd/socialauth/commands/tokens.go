package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/socialauth/internal/app"
	"github.com/florianilch/socialauth/internal/tokenstore"
)

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "inspect or replace stored tokens",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print stored tokens",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reveal",
						Usage: "print full token values instead of masked ones",
					},
				},
				Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					pair, err := a.Tokens(ctx)
					if err != nil {
						return err
					}
					printTokens(cmd.Root().Writer, pair, cmd.Bool("reveal"))
					return nil
				}),
			},
			{
				Name:  "set",
				Usage: "store a token pair obtained elsewhere (prompts for missing values)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "access-token", Usage: "access token"},
					&cli.StringFlag{Name: "refresh-token", Usage: "refresh token"},
				},
				Action: appAction(func(ctx context.Context, cmd *cli.Command, a *app.App) error {
					p := newPrompter(cmd.Root().Reader, cmd.Root().Writer)
					out := cmd.Root().Writer

					access, err := p.valueOrPrompt(cmd.String("access-token"), "Access token: ")
					if err != nil {
						return err
					}
					refresh, err := p.valueOrPrompt(cmd.String("refresh-token"), "Refresh token: ")
					if err != nil {
						return err
					}

					if err := a.SetTokens(ctx, tokenstore.Pair{AccessToken: access, RefreshToken: refresh}); err != nil {
						return err
					}
					_, _ = fmt.Fprintln(out, "Tokens stored.")
					return nil
				}),
			},
		},
	}
}

func printTokens(w io.Writer, pair tokenstore.Pair, reveal bool) {
	show := mask
	if reveal {
		show = func(s string) string { return s }
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", tokenstore.AccessToken, orNone(pair.AccessToken, show))
	_, _ = fmt.Fprintf(w, "%s: %s\n", tokenstore.RefreshToken, orNone(pair.RefreshToken, show))
}

func orNone(s string, show func(string) string) string {
	if s == "" {
		return "(none)"
	}
	return show(s)
}

// mask keeps a short prefix and suffix of long tokens.
func mask(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8) + s[len(s)-4:]
}

// prompter reads token values interactively. Terminal input is not echoed.
type prompter struct {
	raw io.Reader
	buf *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{raw: in, buf: bufio.NewReader(in), out: out}
}

// valueOrPrompt returns value, or reads it after printing prompt.
func (p *prompter) valueOrPrompt(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}

	_, _ = fmt.Fprint(p.out, prompt)

	if f, ok := p.raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return nonEmpty(string(secret))
	}

	line, err := p.buf.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading token: %w", err)
	}
	return nonEmpty(line)
}

func nonEmpty(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", errors.New("token cannot be empty")
	}
	return s, nil
}
