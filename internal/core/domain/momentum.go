package domain

import (
	"fmt"
	"math"
	"time"
)

const momentumExplainerCount = 2

// CalculateMomentumScore compares recent activity against the 30 day baseline and
// counts events inside the trailing window. 50 means flat activity.
func CalculateMomentumScore(attrs DomainAttributes, w MomentumWeights, now time.Time) (float64, []ScoreFactor) {
	delta := ActivityDeltaPercent(attrs.Activity7d, attrs.Activity30d, w.ActivityDelta.WeeklyToMonthly)
	deltaScore := ClampScore(50 + delta/2)

	recent := CountRecentEvents(attrs.RecentEvents, now, w.RecentEvents.Window)
	recentScore := math.Min(w.RecentEvents.Cap, float64(recent)*w.RecentEvents.PerEvent)

	factors := []ScoreFactor{
		newFactor("Activity Delta", deltaScore, w.ActivityDelta.Weight,
			fmt.Sprintf("%+.0f%% vs 30 day baseline", delta)),
		newFactor("Recent Events", recentScore, w.RecentEvents.Weight,
			fmt.Sprintf("%d events in the last %s", recent, formatWindow(w.RecentEvents.Window))),
	}

	return ClampScore(sumContributions(factors)), TopFactors(factors, momentumExplainerCount)
}

// ActivityDeltaPercent scales the 7 day count to a 30 day rate and returns its
// percentage change against activity30d. Zero when there is no baseline.
func ActivityDeltaPercent(activity7d, activity30d int, weeklyToMonthly float64) float64 {
	if activity30d == 0 {
		return 0
	}
	projected := float64(activity7d) * weeklyToMonthly
	return (projected - float64(activity30d)) / float64(activity30d) * 100
}

// CountRecentEvents counts events with now-window <= ts <= now.
func CountRecentEvents(events []DomainEvent, now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	count := 0
	for _, e := range events {
		if !e.Timestamp.Before(cutoff) && !e.Timestamp.After(now) {
			count++
		}
	}
	return count
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}
