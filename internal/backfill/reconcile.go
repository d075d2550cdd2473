// Package backfill reconciles orphaned photo objects against tickets
// whose photo reference was lost. Capture times parsed from the object
// names are matched to ticket creation times inside an asymmetric
// window: in normal operation a photo is taken at or shortly after the
// triggering report, so the window extends further after the ticket
// time than before it.
package backfill

import (
	"errors"
	"sort"
	"time"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// ErrInvalidInput marks tickets the reconciler cannot process, such as
// a ticket with no creation timestamp.
var ErrInvalidInput = errors.New("backfill: invalid input")

// PhotoObject is one object-store entry offered for matching. ModTime
// is the store's own listing timestamp; it is informational only — the
// authoritative capture time is parsed from Name.
type PhotoObject struct {
	Name    string    `json:"name"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// Match pairs a ticket with the photo object claimed for it.
type Match struct {
	TicketID    int64         `json:"ticket_id"`
	Object      string        `json:"object"`
	CaptureTime time.Time     `json:"capture_time"`
	Delta       time.Duration `json:"delta"`
}

// Result is the complete outcome of one reconciliation pass.
type Result struct {
	Matches          []Match
	UnmatchedTickets []*protocol.Ticket
	UnmatchedObjects []PhotoObject
	// Unusable objects carry no parseable capture timestamp and were
	// never eligible for matching.
	Unusable []PhotoObject
}

// Reconcile assigns photo objects to tickets with a deterministic
// greedy nearest-neighbor pass. Tickets are processed in ascending
// creation-time order (earliest first pick); each picks the available
// object with the smallest absolute time delta inside
// [created-before, created+after]. Ties break by earlier capture time,
// then by lexicographically smaller name. Each object is claimed at
// most once. This is greedy, not a globally optimal bipartite matching;
// oldest-first processing approximates the true chronological pairing
// when tickets and photos cluster.
//
// Pure: no I/O, no mutation of the inputs. A ticket with a zero
// creation time is invalid input.
func Reconcile(tickets []*protocol.Ticket, objects []PhotoObject, before, after time.Duration) (Result, error) {
	var res Result

	for _, t := range tickets {
		if t == nil || t.CreatedAt.IsZero() {
			return Result{}, ErrInvalidInput
		}
	}

	var pool []candidate
	for _, o := range objects {
		ct, ok := ParseCaptureTime(o.Name)
		if !ok {
			res.Unusable = append(res.Unusable, o)
			continue
		}
		pool = append(pool, candidate{PhotoObject: o, captureTime: ct})
	}

	ordered := make([]*protocol.Ticket, len(tickets))
	copy(ordered, tickets)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	claimed := make([]bool, len(pool))
	for _, t := range ordered {
		lo := t.CreatedAt.Add(-before)
		hi := t.CreatedAt.Add(after)

		best := -1
		for i, c := range pool {
			if claimed[i] {
				continue
			}
			if c.captureTime.Before(lo) || c.captureTime.After(hi) {
				continue
			}
			if best == -1 || better(c, pool[best], t.CreatedAt) {
				best = i
			}
		}

		if best == -1 {
			res.UnmatchedTickets = append(res.UnmatchedTickets, t)
			continue
		}
		claimed[best] = true
		res.Matches = append(res.Matches, Match{
			TicketID:    t.ID,
			Object:      pool[best].Name,
			CaptureTime: pool[best].captureTime,
			Delta:       absDelta(pool[best].captureTime, t.CreatedAt),
		})
	}

	for i, c := range pool {
		if !claimed[i] {
			res.UnmatchedObjects = append(res.UnmatchedObjects, c.PhotoObject)
		}
	}

	return res, nil
}

type candidate struct {
	PhotoObject
	captureTime time.Time
}

// better reports whether candidate a beats b for a ticket created at
// ref: smaller absolute delta, then earlier capture time, then smaller
// name.
func better(a, b candidate, ref time.Time) bool {
	da, db := absDelta(a.captureTime, ref), absDelta(b.captureTime, ref)
	if da != db {
		return da < db
	}
	if !a.captureTime.Equal(b.captureTime) {
		return a.captureTime.Before(b.captureTime)
	}
	return a.Name < b.Name
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
