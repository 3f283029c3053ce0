package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/tesso57/omnivore-rss-export/internal/application/settings"
	"github.com/tesso57/omnivore-rss-export/internal/domain/subscription"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Subscriptions(ctx context.Context) ([]subscription.Record, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]subscription.Record)
	return records, args.Error(1)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(groups []subscription.FolderGroup, createdAt time.Time) ([]byte, error) {
	args := m.Called(groups, createdAt)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Write(name string, data []byte) (string, error) {
	args := m.Called(name, data)
	return args.String(0), args.Error(1)
}

type mockReporter struct {
	mock.Mock
}

func (m *mockReporter) Report(subs []subscription.Subscription) error {
	args := m.Called(subs)
	return args.Error(0)
}

var (
	fixedNow  = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	validConf = settings.OmnivoreConfig{APIToken: "token", Host: "api-prod.omnivore.app", GraphQLPath: "/api/graphql"}
)

func str(v string) *string { return &v }

func newTestService(cfg settings.OmnivoreConfig, src *mockSource, r *mockRenderer, sink *mockSink, rep *mockReporter) *ExportService {
	svc := NewExportService(cfg, src, r, sink, rep, zerolog.Nop())
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func memberCount(groups []subscription.FolderGroup) int {
	n := 0
	for _, g := range groups {
		n += len(g.Members)
	}
	return n
}

func TestExportFileName(t *testing.T) {
	if got := ExportFileName(fixedNow); got != "omnivore_rss_export_20261019.opml" {
		t.Fatalf("ExportFileName() = %q", got)
	}
}

func TestExportService_Export(t *testing.T) {
	src := &mockSource{}
	src.On("Subscriptions", mock.Anything).Return([]subscription.Record{
		{Name: str("A1"), URL: str("https://a1"), Folder: str("A")},
		{Name: str("Loose"), URL: str("https://loose")},
		{Name: str("B1"), URL: str("https://b1"), Folder: str("B"), CreatedAt: str("not a date")},
		{URL: str("https://nameless")},
	}, nil).Once()

	renderer := &mockRenderer{}
	renderer.On("Render", mock.MatchedBy(func(groups []subscription.FolderGroup) bool {
		return len(groups) == 3 &&
			groups[0].Name == "A" && groups[1].Name == "B" && groups[2].Ungrouped() &&
			memberCount(groups) == 3
	}), fixedNow).Return([]byte("<opml/>"), nil).Once()

	sink := &mockSink{}
	sink.On("Write", "omnivore_rss_export_20261019.opml", []byte("<opml/>")).Return("/tmp/out.opml", nil).Once()

	reporter := &mockReporter{}
	reporter.On("Report", mock.MatchedBy(func(subs []subscription.Subscription) bool { return len(subs) == 3 })).Return(nil).Once()

	got, err := newTestService(validConf, src, renderer, sink, reporter).Export(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if got.Path != "/tmp/out.opml" {
		t.Fatalf("Path = %q", got.Path)
	}
	if len(got.Subscriptions) != 3 || got.Skipped != 1 || got.Filtered != 0 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(got.Warnings) != 2 {
		t.Fatalf("warnings = %v, want skipped record and bad date", got.Warnings)
	}
	if got.Warnings[0].Kind != subscription.WarningDate || got.Warnings[1].Kind != subscription.WarningSkipped {
		t.Fatalf("unexpected warning kinds: %v", got.Warnings)
	}
	if got.Warnings[1].Record != "https://nameless" {
		t.Fatalf("skipped record should be identified by url, got %q", got.Warnings[1].Record)
	}

	src.AssertExpectations(t)
	renderer.AssertExpectations(t)
	sink.AssertExpectations(t)
	reporter.AssertExpectations(t)
}

func TestExportService_ExcludeUnfetched(t *testing.T) {
	records := []subscription.Record{
		{Name: str("Fetched"), URL: str("https://fetched"), CreatedAt: str("2024-01-01T00:00:00Z"), LastFetchedAt: str("2024-06-01T00:00:00Z")},
		{Name: str("Never"), URL: str("https://never"), CreatedAt: str("2024-01-01T00:00:00Z"), LastFetchedAt: str("1970-01-01T00:00:00.000Z")},
	}

	tests := []struct {
		name         string
		exclude      bool
		wantSubs     int
		wantFiltered int
	}{
		{name: "filter enabled", exclude: true, wantSubs: 1, wantFiltered: 1},
		{name: "filter disabled", exclude: false, wantSubs: 2, wantFiltered: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockSource{}
			src.On("Subscriptions", mock.Anything).Return(records, nil).Once()
			renderer := &mockRenderer{}
			renderer.On("Render", mock.MatchedBy(func(groups []subscription.FolderGroup) bool {
				return memberCount(groups) == tt.wantSubs
			}), fixedNow).Return([]byte("x"), nil).Once()
			sink := &mockSink{}
			sink.On("Write", mock.Anything, mock.Anything).Return("out.opml", nil).Once()
			reporter := &mockReporter{}
			reporter.On("Report", mock.Anything).Return(nil).Once()

			got, err := newTestService(validConf, src, renderer, sink, reporter).
				Export(context.Background(), ExportOptions{ExcludeUnfetched: tt.exclude})
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if len(got.Subscriptions) != tt.wantSubs || got.Filtered != tt.wantFiltered {
				t.Fatalf("subs = %d filtered = %d, want %d/%d", len(got.Subscriptions), got.Filtered, tt.wantSubs, tt.wantFiltered)
			}
			if tt.exclude && got.Subscriptions[0].Name != "Fetched" {
				t.Fatalf("kept %q, want Fetched", got.Subscriptions[0].Name)
			}
			renderer.AssertExpectations(t)
		})
	}
}

func TestExportService_EmptyTokenIsConfigurationError(t *testing.T) {
	src := &mockSource{}
	renderer := &mockRenderer{}
	sink := &mockSink{}
	reporter := &mockReporter{}

	cfg := validConf
	cfg.APIToken = ""
	_, err := newTestService(cfg, src, renderer, sink, reporter).Export(context.Background(), ExportOptions{})

	var cfgErr *settings.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Export() error = %v, want *settings.ConfigurationError", err)
	}
	src.AssertNotCalled(t, "Subscriptions", mock.Anything)
	sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func TestExportService_FatalErrorsWriteNothing(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		src := &mockSource{}
		src.On("Subscriptions", mock.Anything).Return(nil, errors.New("connection refused")).Once()
		renderer := &mockRenderer{}
		sink := &mockSink{}

		_, err := newTestService(validConf, src, renderer, sink, &mockReporter{}).Export(context.Background(), ExportOptions{})
		if err == nil {
			t.Fatal("expected error")
		}
		renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
		sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
	})

	t.Run("render", func(t *testing.T) {
		src := &mockSource{}
		src.On("Subscriptions", mock.Anything).Return([]subscription.Record{{Name: str("n"), URL: str("u")}}, nil).Once()
		renderer := &mockRenderer{}
		renderer.On("Render", mock.Anything, mock.Anything).Return(nil, errors.New("broken")).Once()
		sink := &mockSink{}

		_, err := newTestService(validConf, src, renderer, sink, &mockReporter{}).Export(context.Background(), ExportOptions{})
		if err == nil {
			t.Fatal("expected error")
		}
		sink.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
	})
}

func TestExportService_EmptyListStillWritesFile(t *testing.T) {
	src := &mockSource{}
	src.On("Subscriptions", mock.Anything).Return([]subscription.Record{}, nil).Once()
	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, fixedNow).Return([]byte("<opml/>"), nil).Once()
	sink := &mockSink{}
	sink.On("Write", mock.Anything, mock.Anything).Return("out.opml", nil).Once()
	reporter := &mockReporter{}
	reporter.On("Report", mock.Anything).Return(nil).Once()

	got, err := newTestService(validConf, src, renderer, sink, reporter).Export(context.Background(), ExportOptions{ExcludeUnfetched: true})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got.Path != "out.opml" || len(got.Subscriptions) != 0 {
		t.Fatalf("unexpected result: %+v", got)
	}
	sink.AssertExpectations(t)
}

func TestExportService_ReportFailureIsNotFatal(t *testing.T) {
	src := &mockSource{}
	src.On("Subscriptions", mock.Anything).Return([]subscription.Record{{Name: str("n"), URL: str("u")}}, nil).Once()
	renderer := &mockRenderer{}
	renderer.On("Render", mock.Anything, mock.Anything).Return([]byte("x"), nil).Once()
	sink := &mockSink{}
	sink.On("Write", mock.Anything, mock.Anything).Return("out.opml", nil).Once()
	reporter := &mockReporter{}
	reporter.On("Report", mock.Anything).Return(errors.New("stdout closed")).Once()

	if _, err := newTestService(validConf, src, renderer, sink, reporter).Export(context.Background(), ExportOptions{}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	sink.AssertExpectations(t)
}
