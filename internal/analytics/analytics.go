// Package analytics derives click statistics from a URL's visit log.
//
// Every function here is pure: results are recomputed from the stored visit
// history on each query and nothing is accumulated between calls.
package analytics

import (
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// DateLayout is the calendar date format used for bucket keys.
const DateLayout = "2006-01-02"

// DefaultRecentLimit is the number of visits returned by RecentClicks in a Report.
const DefaultRecentLimit = 10

// DayCount is the number of clicks on a single calendar date.
type DayCount struct {
	Date   string
	Clicks int
}

// Report is the full analytics view of a single URL.
type Report struct {
	TotalClicks  int
	ByDate       map[string]int
	ByHour       [24]int
	Last7Days    []DayCount
	Last30Days   []DayCount
	RecentClicks []entity.Visit
	Location     *time.Location
	GeneratedAt  time.Time
}

// Build assembles a Report for history as of now. Dates and hours are
// evaluated in loc; a nil loc means UTC.
func Build(history []entity.Visit, now time.Time, loc *time.Location, recentLimit int) Report {
	if loc == nil {
		loc = time.UTC
	}

	return Report{
		TotalClicks:  TotalClicks(history),
		ByDate:       ClicksByDate(history, loc),
		ByHour:       ClicksByHour(history, loc),
		Last7Days:    RollingWindow(history, now, 7, loc),
		Last30Days:   RollingWindow(history, now, 30, loc),
		RecentClicks: RecentClicks(history, recentLimit),
		Location:     loc,
		GeneratedAt:  now,
	}
}

// TotalClicks returns the number of visits in history.
func TotalClicks(history []entity.Visit) int {
	return len(history)
}

// ClicksByDate groups visits by their calendar date in loc.
func ClicksByDate(history []entity.Visit, loc *time.Location) map[string]int {
	counts := make(map[string]int)
	for _, v := range history {
		counts[v.Timestamp.In(loc).Format(DateLayout)]++
	}

	return counts
}

// ClicksByHour groups visits by hour of day (0-23) in loc, summed across all days.
func ClicksByHour(history []entity.Visit, loc *time.Location) [24]int {
	var counts [24]int
	for _, v := range history {
		counts[v.Timestamp.In(loc).Hour()]++
	}

	return counts
}

// RollingWindow counts visits for each of the last days calendar dates ending
// at now's date (inclusive). The result always holds exactly days entries,
// oldest first, including dates without visits.
func RollingWindow(history []entity.Visit, now time.Time, days int, loc *time.Location) []DayCount {
	if days <= 0 {
		return []DayCount{}
	}

	now = now.In(loc)
	y, m, d := now.Date()

	window := make([]DayCount, days)
	index := make(map[string]int, days)

	for i := 0; i < days; i++ {
		// Noon keeps AddDate-style normalisation clear of DST transitions.
		date := time.Date(y, m, d-(days-1-i), 12, 0, 0, 0, loc).Format(DateLayout)
		window[i] = DayCount{Date: date}
		index[date] = i
	}

	for _, v := range history {
		if i, ok := index[v.Timestamp.In(loc).Format(DateLayout)]; ok {
			window[i].Clicks++
		}
	}

	return window
}

// RecentClicks returns up to limit of the latest visits, most recent first.
func RecentClicks(history []entity.Visit, limit int) []entity.Visit {
	if limit <= 0 {
		return []entity.Visit{}
	}

	n := min(limit, len(history))
	recent := make([]entity.Visit, 0, n)

	for i := len(history) - 1; i >= len(history)-n; i-- {
		recent = append(recent, history[i])
	}

	return recent
}

// Total sums the clicks of a window.
func Total(window []DayCount) int {
	var total int
	for _, dc := range window {
		total += dc.Clicks
	}

	return total
}
