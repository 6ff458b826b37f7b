package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/I2aMpAnT/Carnage-Report-Matchmaking-Bot-sub000/internal/series"
)

const (
	colorOpen    = 0x57F287
	colorPaused  = 0x808080
	colorTest    = 0xFEE75C
	colorPending = 0x5865F2
	colorRed     = 0xED4245
	colorBlue    = 0x3498DB
	colorDone    = 0x2F3136
)

const zwsp = "\u200B"

func scoreLine(red, blue int) string {
	return fmt.Sprintf("**🔴 %d – %d 🔵**", red, blue)
}

func winnerLine(w series.Side) string {
	switch w {
	case series.Red:
		return "🔴 Red wins"
	case series.Blue:
		return "🔵 Blue wins"
	}
	return "⚖️ Tied, pending staff review"
}

// humanSince renders how long ago t was, relative to now.
func humanSince(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%d min", int(d.Minutes()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// safe falls back to a dash for empty values.
func safe(s string) string {
	t := strings.TrimSpace(s)
	if t == "" || t == "-" {
		return "—"
	}
	return t
}

func bulletList(players []int64, name Namer) string {
	if len(players) == 0 {
		return "—"
	}
	var b strings.Builder
	for _, p := range players {
		fmt.Fprintf(&b, "• %s\n", name(p))
	}
	return strings.TrimRight(b.String(), "\n")
}

func quoteBlock(s string) string {
	if s == "" {
		return "> —"
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = "> " + lines[i]
	}
	return strings.Join(lines, "\n")
}

func mentions(players []int64, name Namer) string {
	out := make([]string, 0, len(players))
	for _, p := range players {
		out = append(out, name(p))
	}
	return strings.Join(out, " ")
}
