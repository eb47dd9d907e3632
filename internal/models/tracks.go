package models

import (
	"slices"
)

// TrackID is the opaque identifier of a track. Equality is exact string equality.
type TrackID string

// URI returns the track URI form accepted by the playlist endpoints.
func (id TrackID) URI() string {
	return "spotify:track:" + string(id)
}

// TrackSet is an unordered collection of distinct track identifiers.
type TrackSet map[TrackID]struct{}

// NewTrackSet creates a set containing ids.
func NewTrackSet(ids ...TrackID) TrackSet {
	s := make(TrackSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id. Empty identifiers are ignored.
func (s TrackSet) Add(id TrackID) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s TrackSet) Has(id TrackID) bool {
	_, ok := s[id]
	return ok
}

func (s TrackSet) Len() int { return len(s) }

// Merge adds every element of other into s.
func (s TrackSet) Merge(other TrackSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Union returns a new set with the elements of both sets.
func (s TrackSet) Union(other TrackSet) TrackSet {
	out := make(TrackSet, len(s)+len(other))
	out.Merge(s)
	out.Merge(other)
	return out
}

// Difference returns the elements of s that are not in other.
func (s TrackSet) Difference(other TrackSet) TrackSet {
	out := make(TrackSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Slice returns the elements in ascending order.
func (s TrackSet) Slice() []TrackID {
	ids := make([]TrackID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Diff is the reconciliation plan for the target playlist.
type Diff struct {
	Add     []TrackID // present in the library but missing from the playlist, capped
	Remove  []TrackID // present in the playlist but no longer in the library
	Dropped int       // additions omitted because of the cap
}

// Empty reports whether applying the diff would change nothing.
func (d Diff) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}
