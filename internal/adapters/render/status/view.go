package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/storygrab/igaccounts/internal/application"
	"github.com/storygrab/igaccounts/internal/domain"
)

// Snapshot is everything the status view needs, captured at one point in
// time so the render never races the pool.
type Snapshot struct {
	Accounts  []domain.Account
	CurrentID domain.AccountID
	Rotation  *application.RotatorStatus
}

type RenderOptions struct {
	Now time.Time
}

func Render(snapshot Snapshot, opts RenderOptions) string {
	return renderView(snapshot, opts, newStyles())
}

func renderView(snapshot Snapshot, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Account Pool"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(snapshot.Accounts))),
	}

	if len(snapshot.Accounts) == 0 {
		lines = append(lines, s.empty.Render("No accounts registered."))
	}

	for _, account := range snapshot.Accounts {
		lines = append(lines, s.section.Render(renderAccount(account, snapshot.CurrentID, opts, s)))
	}

	if snapshot.Rotation != nil {
		lines = append(lines, s.section.Render(renderRotation(*snapshot.Rotation, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(account domain.Account, currentID domain.AccountID, opts RenderOptions, s styles) string {
	title := s.account.Render(string(account.ID))
	if account.ID == currentID {
		title = lipgloss.JoinHorizontal(lipgloss.Top, title, " ", s.current.Render("(current)"))
	}

	parts := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", statusStyle(account.Status, s).Render(string(account.Status))),
		usageLine(account, s),
		s.detail.Render(fmt.Sprintf("total: %d requests, %d errors, %s",
			account.TotalRequests, account.ErrorCount, lastUsedLabel(account.LastUsedAt, opts.Now))),
	}

	if account.Status == domain.StatusCooling {
		parts = append(parts, cooldownLine(account, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func usageLine(account domain.Account, s styles) string {
	if account.DailyLimit <= 0 {
		return s.detail.Render("usage: n/a (no daily limit)")
	}

	bar := renderProgressBar(account.UsageRatio(), 24, s)
	meta := s.detail.Render(fmt.Sprintf("%d/%d today", account.RequestCount, account.DailyLimit))

	return lipgloss.JoinHorizontal(lipgloss.Top, bar, " ", meta)
}

func cooldownLine(account domain.Account, opts RenderOptions, s styles) string {
	readyAt := account.CooledDownAt()
	if readyAt.IsZero() {
		return s.detail.Render("cooldown: unknown")
	}
	if !opts.Now.IsZero() && !readyAt.After(opts.Now) {
		return s.detail.Render("cooldown: over, available on next selection")
	}

	if opts.Now.IsZero() {
		return s.detail.Render("cooldown until " + readyAt.Format("15:04 on 02 Jan"))
	}

	return s.warning.Render("cooldown: " + formatDuration(readyAt.Sub(opts.Now)) + " left")
}

func renderRotation(rotation application.RotatorStatus, opts RenderOptions, s styles) string {
	state := "stopped"
	style := s.empty
	if rotation.Active {
		state = "active"
		style = s.available
	}

	lines := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, s.title.Render("Rotation"), "  ", style.Render(state)),
		s.detail.Render(fmt.Sprintf("every %s at %.0f%% usage, %d rotations so far",
			formatDuration(rotation.CheckInterval), rotation.RequestThreshold*100, rotation.RotationCount)),
	}

	if !rotation.LastRotation.IsZero() {
		lines = append(lines, s.detail.Render("last rotation "+lastUsedLabel(rotation.LastRotation, opts.Now)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusStyle(status domain.AccountStatus, s styles) lipgloss.Style {
	switch status {
	case domain.StatusAvailable:
		return s.available
	case domain.StatusCooling:
		return s.cooling
	case domain.StatusBanned:
		return s.banned
	default:
		return s.unknown
	}
}

func renderProgressBar(usedRatio float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	used := clampRatio(usedRatio)
	filled := int(math.Round(float64(width) * used))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", width-filled))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func clampRatio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func lastUsedLabel(lastUsed, now time.Time) string {
	if lastUsed.IsZero() {
		return "never used"
	}
	if now.IsZero() || lastUsed.After(now) {
		return "used at " + lastUsed.Format("15:04 on 02 Jan")
	}

	return fmt.Sprintf("used %s ago", formatDuration(now.Sub(lastUsed)))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) - hours*60
	if minutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}

	return fmt.Sprintf("%dh%02dm", hours, minutes)
}
