package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/agevault/internal"
	"github.com/starford/agevault/internal/deps"
	"github.com/starford/agevault/internal/models"
	pkgconfig "github.com/starford/agevault/pkg/config"
)

// loadConfig reads the config file named by --config. A missing file leaves
// the defaults in place.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func runDaemon(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runOnce(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	outcomes, err := internal.RunOnce(ctx, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	failed := 0
	for _, o := range outcomes {
		if o.Status == models.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
	}
	return nil
}

func runKeygen(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	recipient, err := internal.Keygen(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return fmt.Errorf("keygen: %w", err)
	}
	fmt.Fprintln(cmd.Root().Writer, recipient)
	return nil
}

func runCheck(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	results := deps.CheckBinaries(deps.AgeRequirements(cfg.Age.Binary, cfg.Age.KeygenBinary))
	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printChecks(out, results)
	}

	for _, st := range results {
		if !st.Available {
			return fmt.Errorf("missing dependency: %s", st.Name)
		}
	}
	return nil
}

func printChecks(w io.Writer, results []deps.Status) {
	for _, st := range results {
		if st.Available {
			fmt.Fprintf(w, "ok       %-11s %s\n", st.Name, st.Path)
			continue
		}
		fmt.Fprintf(w, "missing  %-11s %s (%s)\n", st.Name, st.Detail, st.Description)
	}
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}
