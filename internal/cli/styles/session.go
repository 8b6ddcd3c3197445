package styles

import (
	"fmt"
	"strings"
	"time"

	"github.com/crynn/crynn/internal/domain/entity"
)

// SessionRenderer renders the persisted session snapshot for
// `crynn session show`.
type SessionRenderer struct {
	theme *Theme
}

func NewSessionRenderer(theme *Theme) *SessionRenderer {
	return &SessionRenderer{theme: theme}
}

func (r *SessionRenderer) RenderEmpty() string {
	return r.theme.Subtle.Render("No saved session found.")
}

func (r *SessionRenderer) Render(state *entity.SessionState) string {
	if state == nil || len(state.Tabs) == 0 {
		return r.RenderEmpty()
	}

	var b strings.Builder
	b.WriteString(r.theme.Title.Render("Saved session"))
	b.WriteString(r.theme.Subtle.Render(fmt.Sprintf("  %d tabs, saved %s", len(state.Tabs), relativeTime(state.SavedAt))))
	b.WriteString("\n\n")

	for _, tab := range state.Tabs {
		b.WriteString(r.renderTab(tab, tab.ID == state.ActiveID))
		b.WriteString("\n")
	}

	return b.String()
}

func (r *SessionRenderer) renderTab(tab entity.TabSnapshot, active bool) string {
	marker := " "
	markerStyle := r.theme.Subtle
	if active {
		marker = "●"
		markerStyle = r.theme.Highlight
	}

	title := tab.Title
	if title == "" {
		title = tab.URL
	}

	var badges []string
	if tab.Pinned {
		badges = append(badges, "pinned")
	}
	if tab.Muted {
		badges = append(badges, "muted")
	}
	if tab.ReaderMode {
		badges = append(badges, "reader")
	}

	line := fmt.Sprintf("%s %s  %s",
		markerStyle.Render(marker),
		r.theme.Normal.Render(title),
		r.theme.Subtle.Render(tab.URL),
	)
	if len(badges) > 0 {
		line += "  " + r.theme.Badge.Render(strings.Join(badges, " "))
	}
	return line
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "at an unknown time"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours()/24))
	}
}
