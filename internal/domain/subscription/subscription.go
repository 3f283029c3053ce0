// Package subscription defines feed subscription models.
package subscription

import "time"

// Subscription represents a single normalized RSS subscription.
//
// Empty strings and zero times mean the value was absent upstream.
type Subscription struct {
	Name             string
	URL              string
	Folder           string
	Description      string
	NewsletterEmail  string
	Icon             string
	CreatedAt        time.Time
	LastFetchedAt    time.Time
	RefreshedAt      time.Time
	FailedAt         time.Time
	Count            int
	IsPrivate        bool
	AutoAddToLibrary bool
	FetchContent     bool
}

// NeverFetched reports whether the feed has never been fetched successfully.
func (s Subscription) NeverFetched() bool {
	return neverFetched(s.CreatedAt, s.LastFetchedAt)
}

// FolderGroup represents subscriptions sharing one folder.
// An empty Name is the ungrouped bucket.
type FolderGroup struct {
	Name    string
	Members []Subscription
}

// Ungrouped reports whether g holds subscriptions without a folder.
func (g FolderGroup) Ungrouped() bool {
	return g.Name == ""
}

// Group partitions subs by folder. Named folders keep the order in which they
// first appear; the ungrouped bucket, when non-empty, always comes last.
// Members keep their input order.
func Group(subs []Subscription) []FolderGroup {
	if len(subs) == 0 {
		return nil
	}

	groups := make([]FolderGroup, 0, 4)
	indexByName := map[string]int{}
	var ungrouped []Subscription

	for _, sub := range subs {
		if sub.Folder == "" {
			ungrouped = append(ungrouped, sub)
			continue
		}
		if idx, ok := indexByName[sub.Folder]; ok {
			groups[idx].Members = append(groups[idx].Members, sub)
			continue
		}
		groups = append(groups, FolderGroup{
			Name:    sub.Folder,
			Members: []Subscription{sub},
		})
		indexByName[sub.Folder] = len(groups) - 1
	}

	if len(ungrouped) > 0 {
		groups = append(groups, FolderGroup{Members: ungrouped})
	}
	return groups
}
