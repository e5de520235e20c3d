package service

import (
	"sort"
	"time"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
)

// AggregateCities groups canonical records by exact city value and computes the per-city
// rollup. Output is ordered by total enrollments descending, then city ascending.
func AggregateCities(records []models.EnrollmentRecord) []models.CityMetrics {
	if len(records) == 0 {
		return []models.CityMetrics{}
	}

	type group struct {
		metrics models.CityMetrics
		seen    map[string]struct{}
	}
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, record := range records {
		g, ok := groups[record.City]
		if !ok {
			g = &group{metrics: models.CityMetrics{City: record.City}, seen: make(map[string]struct{})}
			groups[record.City] = g
			order = append(order, record.City)
		}
		g.metrics.TotalEnrollments++
		if _, dup := g.seen[record.ParticipantID]; dup {
			g.metrics.RepeatEnrollments++
		} else {
			g.seen[record.ParticipantID] = struct{}{}
		}
		if record.EnrollmentDate != nil {
			g.metrics.FirstEnrollment = earliest(g.metrics.FirstEnrollment, *record.EnrollmentDate)
			g.metrics.LastEnrollment = latest(g.metrics.LastEnrollment, *record.EnrollmentDate)
		}
	}

	out := make([]models.CityMetrics, 0, len(order))
	for _, city := range order {
		out = append(out, groups[city].metrics)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalEnrollments != out[j].TotalEnrollments {
			return out[i].TotalEnrollments > out[j].TotalEnrollments
		}
		return out[i].City < out[j].City
	})
	return out
}

func earliest(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.Before(*current) {
		c := candidate
		return &c
	}
	return current
}

func latest(current *time.Time, candidate time.Time) *time.Time {
	if current == nil || candidate.After(*current) {
		c := candidate
		return &c
	}
	return current
}
