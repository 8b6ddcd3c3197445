// Package entity holds the core domain types for the browser shell.
package entity

import "time"

// DefaultURL is the URL given to tabs created without one.
const DefaultURL = "about:blank"

// TabID uniquely identifies a tab.
type TabID string

// Tab represents one open browser tab.
// Tabs are owned exclusively by the registry; collaborators receive copies.
type Tab struct {
	ID         TabID
	URL        string
	Title      string
	Pinned     bool
	ReaderMode bool
	Muted      bool // UI-level emulation, not enforced by the rendering engine
	CreatedAt  time.Time
}

// NewTab creates a tab with the given URL, falling back to DefaultURL.
func NewTab(id TabID, url string) *Tab {
	if url == "" {
		url = DefaultURL
	}
	return &Tab{
		ID:        id,
		URL:       url,
		CreatedAt: time.Now(),
	}
}

// Clone returns an independent copy of the tab.
func (t *Tab) Clone() *Tab {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// DisplayTitle returns the title to show in the sidebar.
// Falls back to the URL, then to a placeholder for blank tabs.
func (t *Tab) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	if t.URL != "" && t.URL != DefaultURL {
		return t.URL
	}
	return "New Tab"
}
