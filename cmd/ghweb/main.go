// Command ghweb is a thin CLI over the ghWeb client, mainly for
// exercising bindings against a real account.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	ghWeb "github.com/MrEthical07/ghWeb"
	"github.com/MrEthical07/ghWeb/binding"
)

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.yml"
	}
	return filepath.Join(home, ".config", "ghweb", "credentials.yml")
}

func main() {
	var (
		credPath string
		logLevel string
	)

	app := &cli.Command{
		Name:  "ghweb",
		Usage: "Call GitHub's non-public web endpoints from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "credentials",
				Aliases:     []string{"c"},
				Usage:       "path to the YAML credentials file",
				Sources:     cli.EnvVars("GHWEB_CREDENTIALS"),
				Value:       defaultCredentialsPath(),
				Destination: &credPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error)",
				Sources:     cli.EnvVars("GHWEB_LOG_LEVEL"),
				Value:       "warn",
				Destination: &logLevel,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "hovercard",
				Usage:     "Fetch a user's hovercard",
				ArgsUsage: "<username>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					username := cmd.Args().First()
					if username == "" {
						return fmt.Errorf("username required")
					}
					client, err := buildClient(credPath, logLevel)
					if err != nil {
						return err
					}
					defer client.Close()

					card, err := client.GetUserHovercard(ctx, username)
					if err != nil {
						return err
					}
					fmt.Printf("%s: %s\n", card.Login, card.Bio)
					return nil
				},
			},
			{
				Name:  "org",
				Usage: "Organization operations",
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create a free-tier organization",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "organization login and profile name", Required: true},
							&cli.StringFlag{Name: "email", Usage: "billing email", Required: true},
							&cli.BoolFlag{Name: "business", Usage: "create under corporate terms"},
							&cli.StringFlag{Name: "company", Usage: "company name (required with --business)"},
						},
						Action: func(ctx context.Context, cmd *cli.Command) error {
							client, err := buildClient(credPath, logLevel)
							if err != nil {
								return err
							}
							defer client.Close()

							input := ghWeb.CreateOrganizationInput{
								Name:         cmd.String("name"),
								BillingEmail: cmd.String("email"),
								Usage:        ghWeb.OrgUsagePersonal,
								CompanyName:  cmd.String("company"),
							}
							if cmd.Bool("business") {
								input.Usage = ghWeb.OrgUsageBusiness
							}
							if err := client.CreateOrganization(ctx, input); err != nil {
								return err
							}
							fmt.Printf("organization %s created\n", input.Name)
							return nil
						},
					},
				},
			},
			{
				Name:      "call",
				Usage:     "Execute an unbound endpoint and print the raw body",
				ArgsUsage: "<path> [key=value ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "method", Usage: "HTTP method", Value: "GET"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return fmt.Errorf("path required")
					}
					params := binding.Params{}
					for _, arg := range cmd.Args().Tail() {
						key, value, found := strings.Cut(arg, "=")
						if !found {
							return fmt.Errorf("parameter %q is not key=value", arg)
						}
						params[key] = value
					}

					client, err := buildClient(credPath, logLevel)
					if err != nil {
						return err
					}
					defer client.Close()

					resp, err := client.Do(ctx, cmd.String("method"), path, params)
					if err != nil {
						return err
					}
					var buf bytes.Buffer
					if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
						fmt.Println(buf.String())
						return nil
					}
					fmt.Println(string(resp.Body))
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildClient(credPath, level string) (*ghWeb.Client, error) {
	creds, err := ghWeb.LoadCredentials(credPath)
	if err != nil {
		return nil, err
	}

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(logLevel).
		With().Timestamp().Logger()

	return ghWeb.New().
		WithCredentials(creds).
		WithLogger(log).
		WithDriftSink(ghWeb.NewLoggerSink(log.With().Str("component", "drift").Logger())).
		Build()
}
