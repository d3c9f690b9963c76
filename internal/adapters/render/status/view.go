package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/taskwatch/internal/application"
	"github.com/bnema/taskwatch/internal/domain"
)

type RenderOptions struct {
	ServerURL string
}

func renderView(status application.Status, opts RenderOptions, s styles) string {
	header := s.title.Render("taskwatch") + " " + badgeStyle(status.Indicator.Color).Render(status.Indicator.Text)
	lines := []string{header}
	if opts.ServerURL != "" {
		lines = append(lines, s.header.Render(fmt.Sprintf("server: %s", opts.ServerURL)))
	}

	details := []string{
		row(s, "session", sessionLabel(status)),
		row(s, "task", taskLabel(status.TaskID)),
		row(s, "connectivity", connectivityLabel(status.Connectivity, s)),
		row(s, "outbox", outboxLabel(status.PendingItems, s)),
	}
	if status.PendingURL != "" {
		details = append(details, row(s, "pending", status.PendingURL))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, details...)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func row(s styles, label, value string) string {
	return s.label.Render(fmt.Sprintf("%-13s", label+":")) + " " + value
}

func sessionLabel(status application.Status) string {
	if !status.LoggedIn {
		return "logged out"
	}
	if status.Username == "" {
		return "logged in"
	}
	return fmt.Sprintf("logged in as %s", status.Username)
}

func taskLabel(id domain.TaskID) string {
	switch {
	case id == domain.TaskIndeterminate:
		return "unknown (server unreachable)"
	case id.Active():
		return fmt.Sprintf("#%d (recording)", id)
	default:
		return "none"
	}
}

func connectivityLabel(connectivity domain.Connectivity, s styles) string {
	if connectivity == "" || connectivity == domain.ConnectivityConnected {
		return s.detail.Render("connected")
	}
	return s.warning.Render(string(connectivity))
}

func outboxLabel(pending int, s styles) string {
	if pending == 0 {
		return s.empty.Render("empty")
	}
	if pending == 1 {
		return s.detail.Render("1 item queued")
	}
	return s.detail.Render(fmt.Sprintf("%d items queued", pending))
}
