package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/priyankab28/contribsync/internal/models"
)

const (
	cellSize = 11
	cellGap  = 2
)

var heatmapThemes = map[int64][]string{
	// GitHub greens, the default.
	0: {"#ebedf0", "#9be9a8", "#40c463", "#30a14e", "#216e39"},
	1: {"#161b22", "#0e4429", "#006d32", "#26a641", "#39d353"},
	2: {"#ebedf0", "#ffdf80", "#ffb833", "#e68a00", "#994d00"},
}

// SVGRenderer draws the familiar year-grid heatmap as a standalone SVG
// document, one column per ISO week, one cell per day.
type SVGRenderer struct{}

func NewSVGRenderer() *SVGRenderer {
	return &SVGRenderer{}
}

func (r *SVGRenderer) Render(days []*models.ContributionDay, themeID *int64) ([]byte, error) {
	palette := heatmapThemes[0]
	if themeID != nil {
		if p, ok := heatmapThemes[*themeID]; ok {
			palette = p
		}
	}

	counts := make(map[string]int)
	max := 0
	var first, last time.Time
	for _, d := range days {
		day := d.ContributionDate.UTC().Truncate(24 * time.Hour)
		key := day.Format("2006-01-02")
		counts[key] += d.Count
		if counts[key] > max {
			max = counts[key]
		}
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}

	if first.IsZero() {
		now := time.Now().UTC()
		last = now
		first = now.AddDate(-1, 0, 0)
	}

	// Align the grid to the Sunday on or before the first day.
	start := first.AddDate(0, 0, -int(first.Weekday()))
	totalDays := int(last.Sub(start).Hours()/24) + 1
	weeks := (totalDays + 6) / 7

	width := weeks*(cellSize+cellGap) + cellGap
	height := 7*(cellSize+cellGap) + cellGap

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	b.WriteString("\n")

	for day := start; !day.After(last); day = day.AddDate(0, 0, 1) {
		week := int(day.Sub(start).Hours() / 24 / 7)
		x := cellGap + week*(cellSize+cellGap)
		y := cellGap + int(day.Weekday())*(cellSize+cellGap)

		count := counts[day.Format("2006-01-02")]
		fill := palette[levelFor(count, max)]

		fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" rx="2" fill="%s" data-date="%s" data-count="%d"/>`,
			x, y, cellSize, cellSize, fill, day.Format("2006-01-02"), count)
		b.WriteString("\n")
	}

	b.WriteString("</svg>\n")
	return []byte(b.String()), nil
}

// levelFor maps a day count onto the 5-step palette using quartiles of the
// observed maximum.
func levelFor(count, max int) int {
	if count == 0 || max == 0 {
		return 0
	}
	level := 1 + (count-1)*4/max
	if level > 4 {
		level = 4
	}
	return level
}
