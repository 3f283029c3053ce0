// Package opml renders grouped subscriptions as OPML 2.0 documents.
package opml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/tesso57/omnivore-rss-export/internal/domain/subscription"
)

// DefaultTitle is used when a Renderer has no title configured.
const DefaultTitle = "Omnivore RSS Subscriptions Export"

// OPML represents the root of an OPML document.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains OPML metadata.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outlines.
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a single outline element (folder or feed).
// Empty attributes are omitted so absent values stay absent on re-import.
type Outline struct {
	Text        string    `xml:"text,attr"`
	Title       string    `xml:"title,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLURL      string    `xml:"xmlUrl,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Outlines    []Outline `xml:"outline,omitempty"`
}

// RenderError reports groups that violate the grouping contract.
type RenderError struct {
	Group  string
	Reason string
}

func (e *RenderError) Error() string {
	if e.Group == "" {
		return "render opml: " + e.Reason
	}
	return fmt.Sprintf("render opml: group %q: %s", e.Group, e.Reason)
}

// Renderer serializes folder groups into OPML.
type Renderer struct {
	Title string
}

// NewRenderer constructs a Renderer with the given title prefix.
func NewRenderer(title string) Renderer {
	return Renderer{Title: title}
}

// Render builds the OPML document for groups. createdAt only affects head.
func (r Renderer) Render(groups []subscription.FolderGroup, createdAt time.Time) ([]byte, error) {
	if err := validate(groups); err != nil {
		return nil, err
	}

	title := r.Title
	if title == "" {
		title = DefaultTitle
	}

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       fmt.Sprintf("%s - %s", title, createdAt.Format("2006-01-02")),
			DateCreated: createdAt.Format(time.RFC1123Z),
		},
	}

	for _, group := range groups {
		feeds := make([]Outline, 0, len(group.Members))
		for _, sub := range group.Members {
			feeds = append(feeds, feedOutline(sub))
		}
		if group.Ungrouped() {
			doc.Body.Outlines = append(doc.Body.Outlines, feeds...)
			continue
		}
		doc.Body.Outlines = append(doc.Body.Outlines, Outline{
			Text:     group.Name,
			Title:    group.Name,
			Outlines: feeds,
		})
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal opml: %w", err)
	}

	// encoding/xml writes `"` as &#34;. Both are valid; &quot; is what OPML
	// readers conventionally emit. A literal "&#34;" in the input is already
	// escaped to "&amp;#34;", so this only touches encoder output.
	output = bytes.ReplaceAll(output, []byte("&#34;"), []byte("&quot;"))

	buf := bytes.NewBufferString(xml.Header)
	buf.Write(output)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func feedOutline(sub subscription.Subscription) Outline {
	return Outline{
		Text:        sub.Name,
		Title:       sub.Name,
		Type:        "rss",
		XMLURL:      sub.URL,
		Description: sub.Description,
	}
}

func validate(groups []subscription.FolderGroup) error {
	seenUngrouped := false
	for _, group := range groups {
		if seenUngrouped {
			return &RenderError{Group: group.Name, Reason: "group follows the ungrouped bucket"}
		}
		if group.Ungrouped() {
			seenUngrouped = true
		}
		for i, sub := range group.Members {
			if sub.Name == "" || sub.URL == "" {
				return &RenderError{Group: group.Name, Reason: fmt.Sprintf("member %d has no name or url", i)}
			}
			if sub.Folder != group.Name {
				return &RenderError{Group: group.Name, Reason: fmt.Sprintf("member %q belongs to folder %q", sub.Name, sub.Folder)}
			}
		}
	}
	return nil
}
