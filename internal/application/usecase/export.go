// Package usecase contains application-level services.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tesso57/omnivore-rss-export/internal/application/settings"
	"github.com/tesso57/omnivore-rss-export/internal/domain/subscription"
)

const exportFilePrefix = "omnivore_rss_export_"

// SubscriptionSource fetches raw subscription records.
type SubscriptionSource interface {
	Subscriptions(ctx context.Context) ([]subscription.Record, error)
}

// DocumentRenderer serializes folder groups.
type DocumentRenderer interface {
	Render(groups []subscription.FolderGroup, createdAt time.Time) ([]byte, error)
}

// ExportSink stores a rendered document and returns where it went.
type ExportSink interface {
	Write(name string, data []byte) (string, error)
}

// SubscriptionReporter presents exported subscriptions to the user.
type SubscriptionReporter interface {
	Report(subs []subscription.Subscription) error
}

// ExportOptions controls a single export run.
type ExportOptions struct {
	// ExcludeUnfetched drops feeds that were never fetched successfully.
	ExcludeUnfetched bool
}

// ExportResult summarizes a finished export.
type ExportResult struct {
	Path          string
	Subscriptions []subscription.Subscription
	Filtered      int
	Skipped       int
	Warnings      []subscription.Warning
}

// ExportService runs the fetch, normalize, group, render and write pipeline.
type ExportService struct {
	Config   settings.OmnivoreConfig
	Source   SubscriptionSource
	Renderer DocumentRenderer
	Sink     ExportSink
	Reporter SubscriptionReporter
	Logger   zerolog.Logger
	Now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(
	cfg settings.OmnivoreConfig,
	source SubscriptionSource,
	renderer DocumentRenderer,
	sink ExportSink,
	reporter SubscriptionReporter,
	logger zerolog.Logger,
) *ExportService {
	return &ExportService{
		Config:   cfg,
		Source:   source,
		Renderer: renderer,
		Sink:     sink,
		Reporter: reporter,
		Logger:   logger,
		Now:      time.Now,
	}
}

// ExportFileName returns the file name for an export created at now.
func ExportFileName(now time.Time) string {
	return exportFilePrefix + now.Format("20060102") + ".opml"
}

// Export runs one export. Configuration, transport, render and write
// failures abort the run before anything is written; malformed records are
// skipped and reported through the result warnings.
func (s *ExportService) Export(ctx context.Context, opt ExportOptions) (ExportResult, error) {
	if err := s.Config.Validate(); err != nil {
		return ExportResult{}, err
	}
	if s.Source == nil || s.Renderer == nil || s.Sink == nil {
		return ExportResult{}, errors.New("export service is not fully configured")
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	s.Logger.Info().Msg("fetching subscriptions")
	records, err := s.Source.Subscriptions(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("fetch subscriptions: %w", err)
	}

	var result ExportResult
	if opt.ExcludeUnfetched {
		records, result.Filtered = excludeUnfetched(records)
		if result.Filtered > 0 {
			s.Logger.Info().Int("count", result.Filtered).Msg("filtered out never-fetched subscriptions")
		}
	}

	subs := make([]subscription.Subscription, 0, len(records))
	for _, record := range records {
		sub, warnings, err := subscription.Normalize(record)
		var vErr *subscription.ValidationError
		if errors.As(err, &vErr) {
			result.Skipped++
			result.Warnings = append(result.Warnings, subscription.Warning{
				Kind:   subscription.WarningSkipped,
				Record: vErr.Record,
				Field:  vErr.Field,
			})
			s.Logger.Warn().Str("record", vErr.Record).Str("field", vErr.Field).Msg("skipping subscription without required field")
			continue
		}
		if err != nil {
			return ExportResult{}, err
		}
		for _, w := range warnings {
			s.Logger.Warn().Str("record", w.Record).Str("field", w.Field).Str("value", w.Value).Msg(w.String())
		}
		result.Warnings = append(result.Warnings, warnings...)
		subs = append(subs, sub)
	}
	result.Subscriptions = subs

	createdAt := now()
	data, err := s.Renderer.Render(subscription.Group(subs), createdAt)
	if err != nil {
		return ExportResult{}, fmt.Errorf("render export: %w", err)
	}

	if s.Reporter != nil {
		if err := s.Reporter.Report(subs); err != nil {
			s.Logger.Warn().Err(err).Msg("failed to print subscription report")
		}
	}

	path, err := s.Sink.Write(ExportFileName(createdAt), data)
	if err != nil {
		return ExportResult{}, fmt.Errorf("write export: %w", err)
	}
	result.Path = path
	s.Logger.Info().Str("path", path).Int("subscriptions", len(subs)).Msg("exported subscriptions")
	return result, nil
}

func excludeUnfetched(records []subscription.Record) ([]subscription.Record, int) {
	kept := make([]subscription.Record, 0, len(records))
	for _, record := range records {
		if record.NeverFetched() {
			continue
		}
		kept = append(kept, record)
	}
	return kept, len(records) - len(kept)
}
