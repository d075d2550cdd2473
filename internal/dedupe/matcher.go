// Package dedupe decides whether a newly submitted report describes the
// same real-world issue as an existing open ticket, using geographic
// proximity inside a time lookback window. It only reports facts; the
// policy of blocking creation on a duplicate belongs to the tracker.
package dedupe

import (
	"sort"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/internal/geo"
	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// Candidate is an open ticket considered a duplicate of a report,
// annotated with its distance from the report's coordinate.
type Candidate struct {
	Ticket         *protocol.Ticket `json:"ticket"`
	DistanceMeters float64          `json:"distance_m"`
}

// FindDuplicates returns the open tickets within radiusMeters of the
// report's coordinate, ranked ascending by distance. Ties break by
// earlier creation time, then by lower ID, so the result is
// deterministic for a given input.
//
// Callers are expected to pre-filter candidates to open tickets created
// within lookback of now (that is a store-query concern), but the list
// is re-checked here and non-conforming entries are silently dropped.
// A report with no coordinate can never claim a duplicate and yields
// nil regardless of candidates. The radius boundary is inclusive.
func FindDuplicates(report protocol.Report, candidates []*protocol.Ticket, radiusMeters float64, lookback time.Duration, now time.Time) []Candidate {
	if report.Coordinate == nil || len(candidates) == 0 {
		return nil
	}

	cutoff := now.Add(-lookback)

	var matches []Candidate
	for _, t := range candidates {
		if t == nil || t.Status != protocol.StatusOpen || t.Coordinate == nil {
			continue
		}
		if t.CreatedAt.Before(cutoff) || t.CreatedAt.After(now) {
			continue
		}
		d := geo.Distance(report.Coordinate, t.Coordinate)
		if d <= radiusMeters {
			matches = append(matches, Candidate{Ticket: t, DistanceMeters: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.DistanceMeters != b.DistanceMeters {
			return a.DistanceMeters < b.DistanceMeters
		}
		if !a.Ticket.CreatedAt.Equal(b.Ticket.CreatedAt) {
			return a.Ticket.CreatedAt.Before(b.Ticket.CreatedAt)
		}
		return a.Ticket.ID < b.Ticket.ID
	})

	return matches
}
