package entity

import "time"

// SessionStateVersion is the current schema version for persisted sessions.
// Increment when making breaking changes to the serialization format.
const SessionStateVersion = 1

// SessionState is a complete snapshot of the tab registry.
// Serialized to JSON and written to the snapshot store.
type SessionState struct {
	Version  int           `json:"version"`
	Tabs     []TabSnapshot `json:"tabs"`
	ActiveID TabID         `json:"active_id"`
	SavedAt  time.Time     `json:"saved_at"`
}

// TabSnapshot captures the persisted state of a single tab.
type TabSnapshot struct {
	ID         TabID  `json:"id"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Pinned     bool   `json:"pinned"`
	ReaderMode bool   `json:"reader_mode"`
	Muted      bool   `json:"muted,omitempty"`
}

// SnapshotFromTabs builds a SessionState from an ordered tab list.
func SnapshotFromTabs(tabs []*Tab, activeID TabID) *SessionState {
	snap := &SessionState{
		Version:  SessionStateVersion,
		Tabs:     make([]TabSnapshot, 0, len(tabs)),
		ActiveID: activeID,
		SavedAt:  time.Now(),
	}
	for _, t := range tabs {
		snap.Tabs = append(snap.Tabs, TabSnapshot{
			ID:         t.ID,
			URL:        t.URL,
			Title:      t.Title,
			Pinned:     t.Pinned,
			ReaderMode: t.ReaderMode,
			Muted:      t.Muted,
		})
	}
	return snap
}

// Restore converts a snapshot back into live tabs.
// The returned activeID is corrected to a member of the list when the
// persisted one is missing or stale.
func (s *SessionState) Restore() (tabs []*Tab, activeID TabID) {
	if s == nil || len(s.Tabs) == 0 {
		return nil, ""
	}

	tabs = make([]*Tab, 0, len(s.Tabs))
	for _, ts := range s.Tabs {
		if ts.ID == "" {
			continue
		}
		tab := NewTab(ts.ID, ts.URL)
		tab.Title = ts.Title
		tab.Pinned = ts.Pinned
		tab.ReaderMode = ts.ReaderMode
		tab.Muted = ts.Muted
		tabs = append(tabs, tab)
	}
	if len(tabs) == 0 {
		return nil, ""
	}

	activeID = s.ActiveID
	found := false
	for _, t := range tabs {
		if t.ID == activeID {
			found = true
			break
		}
	}
	if !found {
		activeID = tabs[0].ID
	}
	return tabs, activeID
}
