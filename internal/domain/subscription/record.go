package subscription

import (
	"fmt"
	"strings"
	"time"
)

// neverFetchedWindow is how close lastFetchedAt may sit to createdAt and
// still count as "never fetched". Upstream stamps both when the feed is added.
const neverFetchedWindow = time.Minute

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Record is a raw subscription entry as returned by the Omnivore API.
// Every field is optional; nil means the field was absent or null.
type Record struct {
	Name             *string `json:"name"`
	URL              *string `json:"url"`
	Folder           *string `json:"folder"`
	Description      *string `json:"description"`
	CreatedAt        *string `json:"createdAt"`
	LastFetchedAt    *string `json:"lastFetchedAt"`
	NewsletterEmail  *string `json:"newsletterEmail"`
	RefreshedAt      *string `json:"refreshedAt"`
	Count            *int    `json:"count"`
	Icon             *string `json:"icon"`
	IsPrivate        *bool   `json:"isPrivate"`
	AutoAddToLibrary *bool   `json:"autoAddToLibrary"`
	FetchContent     *bool   `json:"fetchContent"`
	FailedAt         *string `json:"failedAt"`
}

// Label returns the most useful identifier available for log messages.
func (r Record) Label() string {
	for _, v := range []*string{r.Name, r.URL, r.Folder} {
		if s := optionalString(v); s != "" {
			return s
		}
	}
	return "<unnamed>"
}

// NeverFetched reports whether the record describes a feed that has never
// been fetched. It applies the same rule as Subscription.NeverFetched.
func (r Record) NeverFetched() bool {
	created, _ := parseDate(r.CreatedAt)
	lastFetched, _ := parseDate(r.LastFetchedAt)
	return neverFetched(created, lastFetched)
}

// WarningKind classifies a non-fatal normalization problem.
type WarningKind string

const (
	// WarningDate marks a date field that could not be parsed.
	WarningDate WarningKind = "date"
	// WarningCount marks a negative item count.
	WarningCount WarningKind = "count"
	// WarningSkipped marks a record dropped because it failed validation.
	WarningSkipped WarningKind = "skipped"
)

// Warning describes a problem that did not stop a record from being exported.
type Warning struct {
	Kind   WarningKind
	Record string
	Field  string
	Value  string
}

func (w Warning) String() string {
	switch w.Kind {
	case WarningDate:
		return fmt.Sprintf("%s: invalid %s %q, treating as absent", w.Record, w.Field, w.Value)
	case WarningCount:
		return fmt.Sprintf("%s: negative %s %s, using 0", w.Record, w.Field, w.Value)
	case WarningSkipped:
		return fmt.Sprintf("%s: skipped, missing %s", w.Record, w.Field)
	default:
		return fmt.Sprintf("%s: %s %q", w.Record, w.Field, w.Value)
	}
}

// ValidationError reports a record missing a required field.
type ValidationError struct {
	Record string
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("subscription %s: missing required field %q", e.Record, e.Field)
}

// Normalize converts a raw record into a Subscription.
// It fails only when name or url is missing; malformed dates and negative
// counts are reported as warnings and replaced with absent/zero values.
func Normalize(r Record) (Subscription, []Warning, error) {
	label := r.Label()

	name := optionalString(r.Name)
	if name == "" {
		return Subscription{}, nil, &ValidationError{Record: label, Field: "name"}
	}
	url := optionalString(r.URL)
	if url == "" {
		return Subscription{}, nil, &ValidationError{Record: label, Field: "url"}
	}

	var warnings []Warning
	date := func(field string, raw *string) time.Time {
		t, ok := parseDate(raw)
		if !ok {
			warnings = append(warnings, Warning{
				Kind:   WarningDate,
				Record: label,
				Field:  field,
				Value:  *raw,
			})
		}
		return t
	}

	sub := Subscription{
		Name:             name,
		URL:              url,
		Folder:           optionalString(r.Folder),
		Description:      optionalString(r.Description),
		NewsletterEmail:  optionalString(r.NewsletterEmail),
		Icon:             optionalString(r.Icon),
		CreatedAt:        date("createdAt", r.CreatedAt),
		LastFetchedAt:    date("lastFetchedAt", r.LastFetchedAt),
		RefreshedAt:      date("refreshedAt", r.RefreshedAt),
		FailedAt:         date("failedAt", r.FailedAt),
		IsPrivate:        optionalBool(r.IsPrivate),
		AutoAddToLibrary: optionalBool(r.AutoAddToLibrary),
		FetchContent:     optionalBool(r.FetchContent),
	}

	if r.Count != nil {
		if *r.Count < 0 {
			warnings = append(warnings, Warning{
				Kind:   WarningCount,
				Record: label,
				Field:  "count",
				Value:  fmt.Sprint(*r.Count),
			})
		} else {
			sub.Count = *r.Count
		}
	}

	return sub, warnings, nil
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func optionalBool(v *bool) bool {
	return v != nil && *v
}

// parseDate returns the zero time for absent, empty, and sentinel values.
// ok is false only when a non-empty value could not be parsed.
func parseDate(v *string) (time.Time, bool) {
	raw := optionalString(v)
	if raw == "" {
		return time.Time{}, true
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if isSentinel(t) {
			return time.Time{}, true
		}
		return t.UTC(), true
	}
	return time.Time{}, false
}

// isSentinel matches the placeholder dates upstream uses for "never".
func isSentinel(t time.Time) bool {
	return t.IsZero() || t.Unix() == 0
}

func neverFetched(createdAt, lastFetchedAt time.Time) bool {
	if lastFetchedAt.IsZero() {
		return true
	}
	if createdAt.IsZero() {
		return false
	}
	return lastFetchedAt.Sub(createdAt).Abs() < neverFetchedWindow
}
