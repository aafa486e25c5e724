package scheduler

import (
	"sort"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

// SectionQuota is a per-section weekly min/max count, spec.md §4.5's
// canonical default set (overridable by configuration).
type SectionQuota struct {
	Section string
	Min     int
	Max     int
}

// DefaultSectionQuotas is the canonical weekly quota set spec.md §4.5
// and §9 name: breathscape 2..3/week, hardware 1..2/week, tips
// 1..2/week, vision 0..1/week.
func DefaultSectionQuotas() []SectionQuota {
	return []SectionQuota{
		{Section: "breathscape", Min: 2, Max: 3},
		{Section: "hardware", Min: 1, Max: 2},
		{Section: "tips", Min: 1, Max: 2},
		{Section: "vision", Min: 0, Max: 1},
	}
}

// PlannableItem is the subset of ContentItem fields the batch planner
// needs: an id, a section name, and a priority.
type PlannableItem struct {
	ItemID   string
	Section  string
	Priority int
}

// PlanDay is one day's planned items.
type PlanDay struct {
	Day   time.Time
	Items []PlannableItem
}

// PlanWeek spreads items across `days` days, never placing two items of
// the same section on the same day. Items are ordered by priority
// (lowest number first) within their section, and sections take turns
// in name order. Each section stops at its quota's Max; a quota's Min
// is not consulted, and there is no separate fill pass after the
// round-robin.
func PlanWeek(items []PlannableItem, days []time.Time, quotas []SectionQuota) []PlanDay {
	plan := make([]PlanDay, len(days))
	for i, d := range days {
		plan[i] = PlanDay{Day: d}
	}
	if len(days) == 0 {
		return plan
	}

	quotaBySection := make(map[string]SectionQuota, len(quotas))
	for _, q := range quotas {
		quotaBySection[q.Section] = q
	}

	bySection := make(map[string][]PlannableItem)
	var sections []string
	for _, it := range items {
		if _, seen := bySection[it.Section]; !seen {
			sections = append(sections, it.Section)
		}
		bySection[it.Section] = append(bySection[it.Section], it)
	}
	for _, s := range sections {
		sort.SliceStable(bySection[s], func(i, j int) bool {
			return bySection[s][i].Priority < bySection[s][j].Priority
		})
	}
	sort.Strings(sections)

	daySections := make([]map[string]bool, len(days))
	for i := range daySections {
		daySections[i] = make(map[string]bool)
	}
	sectionCounts := make(map[string]int)

	// Round-robin by section: repeatedly take the next un-placed item
	// from each section in turn, placing it on the least-loaded day
	// (earliest on ties) that doesn't already carry that section, until
	// the section reaches its weekly max.
	cursor := make(map[string]int)
	placedAny := true
	for placedAny {
		placedAny = false
		for _, s := range sections {
			idx := cursor[s]
			queue := bySection[s]
			if idx >= len(queue) {
				continue
			}
			quota := quotaBySection[s]
			if quota.Max > 0 && sectionCounts[s] >= quota.Max {
				cursor[s] = len(queue) // section exhausted for the week
				continue
			}
			dayIdx := firstAvailableDay(daySections, s)
			if dayIdx == -1 {
				continue
			}
			plan[dayIdx].Items = append(plan[dayIdx].Items, queue[idx])
			daySections[dayIdx][s] = true
			sectionCounts[s]++
			cursor[s] = idx + 1
			placedAny = true
		}
	}

	return plan
}

func firstAvailableDay(daySections []map[string]bool, section string) int {
	best := -1
	bestLoad := -1
	for i, set := range daySections {
		if set[section] {
			continue
		}
		load := len(set)
		if best == -1 || load < bestLoad {
			best = i
			bestLoad = load
		}
	}
	return best
}
