package like

import "time"

// State is the persisted like aggregate for one target. Likers maps
// fingerprints currently liking the target to the time they liked it;
// Total always equals len(Likers).
type State struct {
	Total     int64                `json:"total"`
	FirstLike *time.Time           `json:"firstLike,omitempty"`
	LastLike  *time.Time           `json:"lastLike,omitempty"`
	Likers    map[string]time.Time `json:"likers,omitempty"`
}

// Summary is the per-visitor read projection.
type Summary struct {
	Total     int64 `json:"total"`
	UserLiked bool  `json:"userLiked"`
}

// Toggle flips the fingerprint's membership in the liking set and
// reports the resulting membership. Applied twice by the same
// fingerprint with no interleaving it restores the original total and
// membership.
func Toggle(s State, fingerprint string, now time.Time) (State, bool) {
	out := clone(s)

	if _, liked := out.Likers[fingerprint]; liked {
		delete(out.Likers, fingerprint)
		out.Total = int64(len(out.Likers))
		return out, false
	}

	out.Likers[fingerprint] = now
	out.Total = int64(len(out.Likers))
	ts := now
	out.LastLike = &ts
	if out.FirstLike == nil {
		first := now
		out.FirstLike = &first
	}
	return out, true
}

// Read returns the total and whether this fingerprint currently likes
// the target.
func Read(s State, fingerprint string) Summary {
	_, liked := s.Likers[fingerprint]
	return Summary{Total: s.Total, UserLiked: liked}
}

func clone(s State) State {
	out := State{
		Total:  s.Total,
		Likers: make(map[string]time.Time, len(s.Likers)+1),
	}
	if s.FirstLike != nil {
		first := *s.FirstLike
		out.FirstLike = &first
	}
	if s.LastLike != nil {
		last := *s.LastLike
		out.LastLike = &last
	}
	for k, v := range s.Likers {
		out.Likers[k] = v
	}
	return out
}
