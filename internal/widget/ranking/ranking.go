package ranking

import (
	"sort"
	"time"
)

// Entry is one leaderboard row. Rank is recomputed from position after
// every mutation, never trusted from storage.
type Entry struct {
	Name      string    `json:"name"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
	Rank      int       `json:"rank"`
}

// State is the persisted leaderboard for one target: at most MaxEntries
// entries sorted by descending score, ties broken by earlier timestamp.
type State struct {
	MaxEntries int     `json:"maxEntries"`
	Entries    []Entry `json:"entries,omitempty"`
}

// SubmitOptions selects the duplicate-name policy for one submission.
// The default appends every submission as a new entry; BestPerName keeps
// a single entry per name, replaced only by a strictly better score.
type SubmitOptions struct {
	BestPerName bool
}

// Submit inserts a score and re-establishes the ordering and size
// invariants. When the result exceeds MaxEntries the lowest-ranked
// entries are evicted; on a score tie at the boundary the earlier
// submission survives.
func Submit(s State, name string, score float64, now time.Time, opts SubmitOptions) State {
	out := State{MaxEntries: s.MaxEntries, Entries: copyEntries(s.Entries)}

	if opts.BestPerName {
		if i := indexByName(out.Entries, name); i >= 0 {
			if score > out.Entries[i].Score {
				out.Entries[i].Score = score
				out.Entries[i].Timestamp = now
			}
			return normalize(out)
		}
	}

	out.Entries = append(out.Entries, Entry{Name: name, Score: score, Timestamp: now})
	return normalize(out)
}

// Top returns up to limit leading entries. A negative limit means all.
func Top(s State, limit int) []Entry {
	n := len(s.Entries)
	if limit >= 0 && limit < n {
		n = limit
	}
	return copyEntries(s.Entries[:n])
}

// WithMaxEntries changes the retention bound, evicting from the tail if
// the current board is larger.
func WithMaxEntries(s State, maxEntries int) State {
	if maxEntries < 0 {
		maxEntries = 0
	}
	out := State{MaxEntries: maxEntries, Entries: copyEntries(s.Entries)}
	return normalize(out)
}

func normalize(s State) State {
	sort.Slice(s.Entries, func(i, j int) bool {
		if s.Entries[i].Score != s.Entries[j].Score {
			return s.Entries[i].Score > s.Entries[j].Score
		}
		return s.Entries[i].Timestamp.Before(s.Entries[j].Timestamp)
	})
	if len(s.Entries) > s.MaxEntries {
		s.Entries = s.Entries[:s.MaxEntries]
	}
	for i := range s.Entries {
		s.Entries[i].Rank = i + 1
	}
	return s
}

func indexByName(entries []Entry, name string) int {
	for i := range entries {
		if entries[i].Name == name {
			return i
		}
	}
	return -1
}

func copyEntries(src []Entry) []Entry {
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}
