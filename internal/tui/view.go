package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"plexsleep/internal/idle"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff")).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5fafff"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).MarginTop(1)

	statusStyles = map[string]lipgloss.Style{
		idle.StatusActive:           lipgloss.NewStyle().Foreground(lipgloss.Color("#5fff87")).Bold(true),
		idle.StatusIdle:             lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd75f")).Bold(true),
		idle.StatusPrimeTime:        lipgloss.NewStyle().Foreground(lipgloss.Color("#af87ff")).Bold(true),
		idle.StatusSuspendTriggered: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true),
	}
)

func (m Model) renderTitle(screen string) string {
	title := "plexsleep " + m.header.Version + " | " + screen
	if m.header.DryRun {
		title += " (dry run)"
	}
	return titleStyle.Render(title) + "\n\n"
}

func (m Model) renderStatusScreen() string {
	var b strings.Builder
	b.WriteString(m.renderTitle("Status"))

	b.WriteString(sectionStyle.Render("Agent"))
	b.WriteString("\n")
	b.WriteString(m.renderAgentSection())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Idle Timer"))
	b.WriteString("\n")
	b.WriteString(m.renderIdleSection())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Signals"))
	b.WriteString("\n")
	b.WriteString(m.renderSignalSection())

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderAgentSection() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Plex: "))
	b.WriteString(valueStyle.Render(m.header.Endpoint))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Prime time: "))
	b.WriteString(valueStyle.Render(m.header.PrimeTime))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Input: "))
	b.WriteString(valueStyle.Render(m.header.InputSource))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Suspend via: "))
	b.WriteString(valueStyle.Render(m.header.Executor))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(prettyDuration(m.now.Sub(m.startTime))))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Ticks: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.ticks)))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Suspend requests: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", m.suspends)))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderIdleSection() string {
	if !m.hasReport {
		return valueStyle.Render("Waiting for the first tick") + "\n"
	}

	r := m.report
	style, ok := statusStyles[r.Status]
	if !ok {
		style = valueStyle
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render("Status: "))
	b.WriteString(style.Render(statusLabel(r.Status)))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Last tick: "))
	b.WriteString(valueStyle.Render(prettyDuration(m.now.Sub(r.At)) + " ago"))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("Inactive: "))
	b.WriteString(valueStyle.Render(prettyDuration(seconds(r.InactiveSeconds))))
	b.WriteString(labelStyle.Render(" of "))
	b.WriteString(valueStyle.Render(prettyDuration(seconds(r.TimeoutSeconds))))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Remaining: "))
	b.WriteString(valueStyle.Render(prettyDuration(seconds(r.RemainingSeconds()))))
	b.WriteString("\n")

	if r.SuspendPending {
		b.WriteString(valueStyle.Render("Suspend requested, counter resets on the next tick"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSignalSection() string {
	if !m.hasReport {
		return ""
	}

	r := m.report
	var b strings.Builder
	b.WriteString(labelStyle.Render("Sessions: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", len(r.Sessions))))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Local input: "))
	switch {
	case !r.LocalAvailable:
		b.WriteString(valueStyle.Render("unavailable"))
	case r.LocalActivity:
		b.WriteString(valueStyle.Render("recent"))
	default:
		b.WriteString(valueStyle.Render("none"))
	}
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Prime time: "))
	b.WriteString(valueStyle.Render(yesNo(r.PrimeTime)))
	b.WriteString("\n")

	if r.ProbeError != "" {
		b.WriteString(errorStyle.Render("⚠ Plex probe failed: " + r.ProbeError))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSessionsScreen() string {
	var b strings.Builder
	b.WriteString(m.renderTitle("Sessions"))

	switch {
	case !m.hasReport:
		b.WriteString(valueStyle.Render("Waiting for the first tick"))
		b.WriteString("\n")
	case len(m.report.Sessions) == 0:
		b.WriteString(valueStyle.Render("No active sessions"))
		b.WriteString("\n")
	default:
		for _, s := range m.report.Sessions {
			title := s.Title
			if s.Artist != "" {
				title = s.Artist + " - " + title
			}
			b.WriteString(fmt.Sprintf("  • %s %s\n",
				valueStyle.Render(title),
				labelStyle.Render(fmt.Sprintf("(%s, %s on %s)", s.MediaType, s.User, s.PlayerName)),
			))
		}
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHelpScreen() string {
	var b strings.Builder
	b.WriteString(m.renderTitle("Help"))

	for _, kb := range DefaultKeyBindings() {
		b.WriteString(fmt.Sprintf("  %s  %s\n", valueStyle.Render(kb.Key), labelStyle.Render(kb.Label)))
	}
	b.WriteString(fmt.Sprintf("  %s  %s\n", valueStyle.Render("esc"), labelStyle.Render("Back to status")))
	b.WriteString(fmt.Sprintf("  %s  %s\n", valueStyle.Render("q"), labelStyle.Render("Quit and stop the agent")))

	b.WriteString("\n")
	b.WriteString(labelStyle.Render("The idle loop ticks every minute. Playback sessions and local input reset the counter."))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderFooter() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(hintStyle.Render("Status: 1 | Sessions: 2 | Help: ? | Quit: q"))
	b.WriteString("\n")
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("⚠ " + m.lastError))
		b.WriteString("\n")
	}
	return b.String()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// prettyDuration formats a duration for display
func prettyDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return "<1s"
	}
	return d.Truncate(time.Second).String()
}

func statusLabel(status string) string {
	return capitalize(strings.ReplaceAll(status, "_", " "))
}

func capitalize(input string) string {
	if input == "" {
		return ""
	}
	runes := []rune(input)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
