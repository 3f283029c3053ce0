// Command omnivore-rss-export writes the Omnivore RSS subscriptions of the
// configured account to an OPML file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/tesso57/omnivore-rss-export/internal/application/settings"
	"github.com/tesso57/omnivore-rss-export/internal/application/usecase"
	"github.com/tesso57/omnivore-rss-export/internal/infrastructure/config"
	"github.com/tesso57/omnivore-rss-export/internal/infrastructure/export"
	"github.com/tesso57/omnivore-rss-export/internal/infrastructure/logging"
	"github.com/tesso57/omnivore-rss-export/internal/infrastructure/omnivore"
	"github.com/tesso57/omnivore-rss-export/internal/infrastructure/opml"
	"github.com/tesso57/omnivore-rss-export/internal/presentation/report"
)

// configPathEnv overrides the default YAML config location.
const configPathEnv = "OMNIVORE_CONFIG"

// CLI is the command line surface.
type CLI struct {
	ExcludeUnfetched bool `name:"exclude-unfetched" help:"Exclude feeds that have never been fetched after creation."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("omnivore-rss-export"),
		kong.Description("Export Omnivore RSS subscriptions to OPML."),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	if _, err := parser.Parse(args); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 2
	}

	logger := logging.New(stderr, "info")
	if err := config.LoadDotEnv(".env"); err != nil {
		logger.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(os.Getenv(configPathEnv))
	if err != nil {
		var cfgErr *settings.ConfigurationError
		if errors.As(err, &cfgErr) {
			logger.Error().Strs("missing", cfgErr.Missing).Msg(cfgErr.Error())
		} else {
			logger.Error().Err(err).Msg("failed to load configuration")
		}
		return 1
	}
	logger = logging.New(stderr, cfg.LogLevel)

	client, err := omnivore.NewClient(cfg.Omnivore, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create omnivore client")
		return 1
	}

	svc := usecase.NewExportService(
		cfg.Omnivore,
		client,
		opml.NewRenderer(cfg.Export.Title),
		export.NewFileSink(cfg.Export.OutputDir),
		report.NewWriter(stdout),
		logger,
	)

	result, err := svc.Export(ctx, usecase.ExportOptions{ExcludeUnfetched: cli.ExcludeUnfetched})
	if err != nil {
		logger.Error().Err(err).Msg("export failed")
		return 1
	}

	if result.Filtered > 0 {
		_, _ = fmt.Fprintf(stdout, "\nFiltered out %d never-fetched subscriptions\n", result.Filtered)
	}
	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintf(stdout, "\n%d warnings logged\n", len(result.Warnings))
	}
	_, _ = fmt.Fprintf(stdout, "\nExported subscriptions to %s\n", result.Path)
	return 0
}
