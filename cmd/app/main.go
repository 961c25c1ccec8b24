package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "agevault",
		Usage:   "Folder-driven age encryption: drop files in a queue folder, collect them from the other side",
		Version: version,
		Action:  runDaemon,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Watch the queue folders until interrupted (default)",
				Action: runDaemon,
			},
			{
				Name:   "once",
				Usage:  "Sweep both queue folders once and exit",
				Action: runOnce,
			},
			{
				Name:   "keygen",
				Usage:  "Create the key file if missing and print its public key",
				Action: runKeygen,
			},
			{
				Name:  "check",
				Usage: "Check that age and age-keygen are installed",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print results as JSON"},
				},
				Action: runCheck,
			},
			{
				Name:   "mcp",
				Usage:  "Serve read-only pipeline tools over MCP stdio",
				Action: runMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
