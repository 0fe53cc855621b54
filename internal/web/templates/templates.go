// Package templates holds the HTML components served by the web UI.
//
// Components are written in .templ files; the matching _templ.go files are
// produced by `templ generate`.
package templates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/cardconv/internal/core"
)

func fileLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "(unnamed)"
	}
	return name
}

func progressValue(p core.Progress) string {
	return strconv.Itoa(p.Percent())
}

func progressText(p core.Progress) string {
	return fmt.Sprintf("Resolving %d of %d cards", p.Settled, p.Total)
}

func summaryText(res core.BatchResult) string {
	s := res.Stats
	return fmt.Sprintf("%d cards converted (%d exact, %d to double-check). %d missing, %d skipped.",
		len(res.Records), s.High, s.Low, s.Missing, s.Excluded)
}

func startedLabel(t time.Time) string {
	return t.Local().Format(time.DateTime)
}

func runOutputURL(id string) string {
	return "/api/runs/" + id + "/output.csv"
}

// errorLines returns the paragraphs shown for a failed run.
func errorLines(info *core.ErrorInfo) []string {
	if len(info.Lines) == 0 {
		return []string{info.Message}
	}
	return info.Lines
}
