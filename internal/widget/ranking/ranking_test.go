package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func submitAll(s State, names []string, scores []float64) State {
	for i := range names {
		s = Submit(s, names[i], scores[i], base.Add(time.Duration(i)*time.Second), SubmitOptions{})
	}
	return s
}

func TestSubmitOrdersAndEvicts(t *testing.T) {
	s := State{MaxEntries: 3}
	s = submitAll(s, []string{"A", "B", "C", "D"}, []float64{10, 20, 15, 25})

	assert.Len(t, s.Entries, 3)
	assert.Equal(t, "D", s.Entries[0].Name)
	assert.Equal(t, float64(25), s.Entries[0].Score)
	assert.Equal(t, "B", s.Entries[1].Name)
	assert.Equal(t, "C", s.Entries[2].Name)
	for i, e := range s.Entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestTieBreakEarlierSubmissionWins(t *testing.T) {
	s := State{MaxEntries: 10}
	s = Submit(s, "late", 50, base.Add(time.Hour), SubmitOptions{})
	s = Submit(s, "early", 50, base, SubmitOptions{})

	assert.Equal(t, "early", s.Entries[0].Name)
	assert.Equal(t, "late", s.Entries[1].Name)
}

func TestTieAtEvictionBoundary(t *testing.T) {
	s := State{MaxEntries: 2}
	s = Submit(s, "top", 90, base, SubmitOptions{})
	s = Submit(s, "first", 40, base.Add(time.Second), SubmitOptions{})
	s = Submit(s, "second", 40, base.Add(2*time.Second), SubmitOptions{})

	assert.Len(t, s.Entries, 2)
	assert.Equal(t, "top", s.Entries[0].Name)
	assert.Equal(t, "first", s.Entries[1].Name)
}

func TestZeroMaxEntriesKeepsNothing(t *testing.T) {
	s := State{MaxEntries: 0}
	s = Submit(s, "A", 10, base, SubmitOptions{})
	assert.Empty(t, s.Entries)
}

func TestBestPerNameReplacesOnlyBetter(t *testing.T) {
	opts := SubmitOptions{BestPerName: true}
	s := State{MaxEntries: 10}
	s = Submit(s, "A", 10, base, opts)
	s = Submit(s, "A", 5, base.Add(time.Second), opts)

	assert.Len(t, s.Entries, 1)
	assert.Equal(t, float64(10), s.Entries[0].Score)
	assert.Equal(t, base, s.Entries[0].Timestamp)

	s = Submit(s, "A", 30, base.Add(2*time.Second), opts)
	assert.Len(t, s.Entries, 1)
	assert.Equal(t, float64(30), s.Entries[0].Score)
}

func TestDefaultPolicyAppendsDuplicates(t *testing.T) {
	s := State{MaxEntries: 10}
	s = Submit(s, "A", 10, base, SubmitOptions{})
	s = Submit(s, "A", 20, base.Add(time.Second), SubmitOptions{})
	assert.Len(t, s.Entries, 2)
}

func TestTopLimits(t *testing.T) {
	s := State{MaxEntries: 10}
	s = submitAll(s, []string{"A", "B", "C"}, []float64{10, 20, 15})

	top := Top(s, 2)
	assert.Len(t, top, 2)
	assert.Equal(t, "B", top[0].Name)
	assert.Equal(t, "C", top[1].Name)

	assert.Len(t, Top(s, -1), 3)
	assert.Len(t, Top(s, 0), 0)
	assert.Len(t, Top(s, 100), 3)
}

func TestTopReturnsCopy(t *testing.T) {
	s := State{MaxEntries: 10}
	s = Submit(s, "A", 10, base, SubmitOptions{})
	top := Top(s, -1)
	top[0].Name = "mutated"
	assert.Equal(t, "A", s.Entries[0].Name)
}

func TestWithMaxEntriesShrinks(t *testing.T) {
	s := State{MaxEntries: 5}
	s = submitAll(s, []string{"A", "B", "C", "D"}, []float64{10, 20, 15, 25})

	s = WithMaxEntries(s, 2)
	assert.Equal(t, 2, s.MaxEntries)
	assert.Len(t, s.Entries, 2)
	assert.Equal(t, "D", s.Entries[0].Name)
	assert.Equal(t, "B", s.Entries[1].Name)

	s = WithMaxEntries(s, -3)
	assert.Equal(t, 0, s.MaxEntries)
	assert.Empty(t, s.Entries)
}

func TestSubmitDoesNotMutateInput(t *testing.T) {
	s := State{MaxEntries: 5}
	s = Submit(s, "A", 10, base, SubmitOptions{})
	_ = Submit(s, "B", 20, base.Add(time.Second), SubmitOptions{})

	assert.Len(t, s.Entries, 1)
	assert.Equal(t, "A", s.Entries[0].Name)
	assert.Equal(t, 1, s.Entries[0].Rank)
}
