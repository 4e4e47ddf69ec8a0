package domain

import "sort"

// Snapshot is a point-in-time view of the pool and the pending intents, as
// exchanged with solvers and stored in fixtures.
type Snapshot struct {
	Round   uint64        `json:"round"`
	Assets  []*AssetState `json:"assets"`
	Intents []*Intent     `json:"intents,omitempty"`
}

// Asset returns the asset with the given id.
func (s *Snapshot) Asset(id AssetID) (*AssetState, bool) {
	for _, a := range s.Assets {
		if a.AssetID == id {
			return a, true
		}
	}
	return nil, false
}

// Normalize fills nil balances and orders assets by id and intents by
// submission sequence.
func (s *Snapshot) Normalize() {
	for _, a := range s.Assets {
		a.Normalize()
	}
	sort.Slice(s.Assets, func(i, j int) bool { return s.Assets[i].AssetID < s.Assets[j].AssetID })
	sort.SliceStable(s.Intents, func(i, j int) bool { return s.Intents[i].ID.Seq < s.Intents[j].ID.Seq })
}
