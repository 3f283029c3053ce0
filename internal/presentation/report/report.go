// Package report prints a plain-text summary of exported subscriptions.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tesso57/omnivore-rss-export/internal/domain/subscription"
)

const dateLayout = "2006-01-02"

// Writer prints one block per subscription.
type Writer struct {
	Out io.Writer
}

// NewWriter constructs a Writer.
func NewWriter(out io.Writer) Writer {
	return Writer{Out: out}
}

// Report writes the summary for subs.
func (w Writer) Report(subs []subscription.Subscription) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nFound %d RSS subscriptions:\n", len(subs))
	for _, sub := range subs {
		b.WriteString("\n")
		writeBlock(&b, sub)
	}
	_, err := io.WriteString(w.Out, b.String())
	return err
}

func writeBlock(b *strings.Builder, sub subscription.Subscription) {
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(b, "%s: %s\n", label, value)
		}
	}
	date := func(label string, t time.Time) {
		if !t.IsZero() {
			line(label, t.Format(dateLayout))
		}
	}

	line("Name", sub.Name)
	line("URL", sub.URL)
	line("Folder", sub.Folder)
	line("Description", sub.Description)
	line("Newsletter email", sub.NewsletterEmail)
	date("Created at", sub.CreatedAt)
	date("Last fetched at", sub.LastFetchedAt)
	date("Refreshed at", sub.RefreshedAt)
	line("Count", fmt.Sprint(sub.Count))
	line("Icon", sub.Icon)
	line("Is private", fmt.Sprint(sub.IsPrivate))
	line("Auto add to library", fmt.Sprint(sub.AutoAddToLibrary))
	line("Fetch content", fmt.Sprint(sub.FetchContent))
	date("Failed at", sub.FailedAt)
}
