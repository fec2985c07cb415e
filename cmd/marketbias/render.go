package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/store"
)

var (
	bullishColor = lipgloss.Color("42")
	bearishColor = lipgloss.Color("196")
	neutralColor = lipgloss.Color("214")

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Width(84)

	headerStyle = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(14)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warnStyle   = lipgloss.NewStyle().Foreground(neutralColor).Bold(true)
)

func biasColor(d core.Direction) lipgloss.Color {
	switch d {
	case core.Bullish:
		return bullishColor
	case core.Bearish:
		return bearishColor
	}
	return neutralColor
}

func renderSnapshot(snap store.Snapshot) string {
	b := snap.Bias
	color := biasColor(b.Bias)

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render(string(b.Index)),
		"  ",
		headerStyle.Foreground(color).Render(strings.ToUpper(string(b.Bias))),
		"  ",
		fmt.Sprintf("score %+d  confidence %d%%", b.Score, b.Confidence),
	)

	lines := []string{header}
	if b.Fallback {
		lines = append(lines, warnStyle.Render("fallback: data unavailable, neutral bias"))
	}
	if snap.Stale {
		lines = append(lines, warnStyle.Render("stale: last refresh is older than the freshness window"))
	}

	lines = append(lines, "", row("Trigger", b.PrimaryTrigger))
	if b.InvalidationLevel != nil {
		lines = append(lines, row("Invalidation", fmt.Sprintf("%.2f", *b.InvalidationLevel)))
	}

	if snap.Levels != nil {
		l := snap.Levels
		lines = append(lines,
			row("Prev day", fmt.Sprintf("H %.2f  L %.2f  mid %.2f", l.PDH, l.PDL, l.Mid)),
			row("Round", joinFloats(l.RoundNumbers)),
		)
	}
	if or := snap.OpeningRange; or != nil {
		lines = append(lines, row("Open 15m",
			fmt.Sprintf("%s  H %.2f  L %.2f  range %.2f  %s", or.SessionDate, or.High, or.Low, or.Range, or.Direction)))
	}

	if len(b.Rationale) > 0 {
		lines = append(lines, "", headerStyle.Render("Rationale"))
		for _, r := range b.Rationale {
			lines = append(lines, "  - "+r)
		}
	}

	lines = append(lines, "", mutedStyle.Render("updated "+b.LastUpdated.Format("2006-01-02 15:04:05 MST")))

	return cardStyle.BorderForeground(color).Render(strings.Join(lines, "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.0f", v)
	}
	return strings.Join(parts, " ")
}
