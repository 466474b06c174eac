package counter

import (
	"fmt"
	"time"
)

// State is the persisted visit-counter aggregate for one target.
// Total is tracked independently of the period buckets: pruning old
// buckets never changes it. LastVisits holds the most recent accepted
// visit per fingerprint and drives the dedup window.
type State struct {
	Total      int64                `json:"total"`
	Daily      map[string]int64     `json:"daily,omitempty"`
	Weekly     map[string]int64     `json:"weekly,omitempty"`
	Monthly    map[string]int64     `json:"monthly,omitempty"`
	LastVisits map[string]time.Time `json:"lastVisits,omitempty"`
}

// Counts is the read projection of a State.
type Counts struct {
	Total   int64            `json:"total"`
	Daily   map[string]int64 `json:"daily"`
	Weekly  map[string]int64 `json:"weekly"`
	Monthly map[string]int64 `json:"monthly"`
}

// Retention bounds how many periods of each bucket kind survive a prune.
type Retention struct {
	DailyDays     int
	WeeklyWeeks   int
	MonthlyMonths int
}

func DayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func MonthKey(t time.Time) string { return t.UTC().Format("2006-01") }

// RecordVisit applies one visit and reports whether it was accepted.
// A repeat visit from the same fingerprint inside the dedup window is a
// no-op acceptance: the unchanged state is returned with accepted=false.
func RecordVisit(s State, fingerprint string, now time.Time, window time.Duration) (State, bool) {
	if last, ok := s.LastVisits[fingerprint]; ok && now.Sub(last) < window {
		return s, false
	}

	out := clone(s)
	out.Total++
	out.Daily[DayKey(now)]++
	out.Weekly[WeekKey(now)]++
	out.Monthly[MonthKey(now)]++
	out.LastVisits[fingerprint] = now
	return out, true
}

// Read returns the count projection without touching dedup state.
func Read(s State) Counts {
	return Counts{
		Total:   s.Total,
		Daily:   copyBucket(s.Daily),
		Weekly:  copyBucket(s.Weekly),
		Monthly: copyBucket(s.Monthly),
	}
}

// Prune drops dedup records older than the window and buckets beyond the
// retention horizon. Total is unaffected. Bucket keys sort
// lexicographically in chronological order, so a cutoff key comparison
// is enough.
func Prune(s State, now time.Time, window time.Duration, r Retention) State {
	out := clone(s)

	for fp, seen := range out.LastVisits {
		if now.Sub(seen) >= window {
			delete(out.LastVisits, fp)
		}
	}

	if r.DailyDays > 0 {
		cutoff := DayKey(now.AddDate(0, 0, -r.DailyDays))
		dropBefore(out.Daily, cutoff)
	}
	if r.WeeklyWeeks > 0 {
		cutoff := WeekKey(now.AddDate(0, 0, -7*r.WeeklyWeeks))
		dropBefore(out.Weekly, cutoff)
	}
	if r.MonthlyMonths > 0 {
		cutoff := MonthKey(now.AddDate(0, -r.MonthlyMonths, 0))
		dropBefore(out.Monthly, cutoff)
	}
	return out
}

// Reset returns an empty counter state.
func Reset(State) State { return State{} }

func dropBefore(bucket map[string]int64, cutoff string) {
	for key := range bucket {
		if key < cutoff {
			delete(bucket, key)
		}
	}
}

func clone(s State) State {
	out := State{
		Total:      s.Total,
		Daily:      make(map[string]int64, len(s.Daily)+1),
		Weekly:     make(map[string]int64, len(s.Weekly)+1),
		Monthly:    make(map[string]int64, len(s.Monthly)+1),
		LastVisits: make(map[string]time.Time, len(s.LastVisits)+1),
	}
	for k, v := range s.Daily {
		out.Daily[k] = v
	}
	for k, v := range s.Weekly {
		out.Weekly[k] = v
	}
	for k, v := range s.Monthly {
		out.Monthly[k] = v
	}
	for k, v := range s.LastVisits {
		out.LastVisits[k] = v
	}
	return out
}

func copyBucket(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
