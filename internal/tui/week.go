package tui

import (
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/faff/internal/datespec"
	"github.com/sadopc/faff/internal/query"
)

const weekDays = 7

// weekModel charts the time logged on each of the last seven days.
type weekModel struct {
	width  int
	from   time.Time
	totals map[string]time.Duration
	chart  barchart.Model
}

func newWeekModel() weekModel {
	return weekModel{chart: barchart.New(60, 10)}
}

// weekRange is the seven days ending on today.
func weekRange(today time.Time) datespec.Range {
	return datespec.Range{From: today.AddDate(0, 0, 1-weekDays), To: today}
}

func weekQuery(today time.Time) query.Query {
	rng := weekRange(today)
	return query.Query{Range: &rng, GroupBy: []string{"date"}}
}

func (w *weekModel) load(from time.Time, res *query.Result) {
	w.from = from
	w.totals = make(map[string]time.Duration, len(res.Groups))
	for _, g := range res.Groups {
		w.totals[g.Key] = g.Duration
	}
	w.build()
}

func (w *weekModel) setWidth(width int) {
	w.width = width
	if w.totals != nil {
		w.build()
	}
}

func (w weekModel) total() time.Duration {
	var sum time.Duration
	for _, d := range w.totals {
		sum += d
	}
	return sum
}

func (w *weekModel) build() {
	chartWidth := w.width - 8
	if chartWidth < 28 {
		chartWidth = 28
	}
	w.chart = barchart.New(chartWidth, 10)

	var bars []barchart.BarData
	for k := range weekDays {
		d := w.from.AddDate(0, 0, k)
		hours := w.totals[datespec.Format(d)].Hours()
		style := barStyle
		if hours == 0 {
			style = lipgloss.NewStyle().Foreground(colorSubtle)
		}
		bars = append(bars, barchart.BarData{
			Label:  d.Format("Mon"),
			Values: []barchart.BarValue{{Name: datespec.Format(d), Value: hours, Style: style}},
		})
	}
	w.chart.PushAll(bars)
	w.chart.Draw()
}

func (w weekModel) view() string {
	if w.totals == nil {
		return mutedStyle.Render("Loading week...")
	}
	return w.chart.View()
}
