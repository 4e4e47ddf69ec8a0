package intent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hxuan190/omnipool-engine/internal/domain"
)

// Store holds pending intents keyed by (deadline, seq). Sequence numbers are
// handed out in submission order, so seq order is first-seen order.
type Store struct {
	mu          sync.RWMutex
	intents     map[domain.IntentID]*domain.Intent
	nextSeq     uint64
	maxDeadline uint64
	hubAsset    domain.AssetID
}

// NewStore creates an empty store. maxDeadline bounds how far ahead of now a
// deadline may be, in milliseconds; zero disables the bound. Intents buying
// hubAsset are refused.
func NewStore(maxDeadline uint64, hubAsset domain.AssetID) *Store {
	return &Store{
		intents:     make(map[domain.IntentID]*domain.Intent),
		maxDeadline: maxDeadline,
		hubAsset:    hubAsset,
	}
}

// Submission is a user request to swap, as received from the API.
type Submission struct {
	Who       string
	Swap      domain.Swap
	Deadline  uint64
	Partial   bool
	OnSuccess []byte
	OnFailure []byte
}

// Submit validates and stores a new intent.
func (s *Store) Submit(sub Submission, now uint64) (*domain.Intent, error) {
	if err := ValidateSubmission(sub.Swap, s.hubAsset, sub.Deadline, now, s.maxDeadline); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := domain.IntentID{Deadline: sub.Deadline, Seq: s.nextSeq}
	s.nextSeq++

	in := &domain.Intent{
		ID:        id,
		Who:       sub.Who,
		Swap:      sub.Swap,
		Deadline:  sub.Deadline,
		Partial:   sub.Partial,
		OnSuccess: sub.OnSuccess,
		OnFailure: sub.OnFailure,
	}
	in = in.Clone()
	s.intents[id] = in
	return in.Clone(), nil
}

// Restore inserts an intent loaded from storage and keeps the sequence
// counter ahead of it.
func (s *Store) Restore(in *domain.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[in.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIntent, in.ID)
	}
	s.intents[in.ID] = in.Clone()
	if in.ID.Seq >= s.nextSeq {
		s.nextSeq = in.ID.Seq + 1
	}
	return nil
}

func (s *Store) Get(id domain.IntentID) (*domain.Intent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.intents[id]
	if !ok {
		return nil, false
	}
	return in.Clone(), true
}

// Lookup returns copies of the requested intents that exist.
func (s *Store) Lookup(ids []domain.IntentID) map[domain.IntentID]*domain.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.IntentID]*domain.Intent, len(ids))
	for _, id := range ids {
		if in, ok := s.intents[id]; ok {
			out[id] = in.Clone()
		}
	}
	return out
}

// Pending returns the intents still resolvable at now in first-seen order.
func (s *Store) Pending(now uint64) []*domain.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Intent, 0, len(s.intents))
	for _, in := range s.intents {
		if !Expired(in, now) {
			out = append(out, in.Clone())
		}
	}
	sortBySeq(out)
	return out
}

// All returns every stored intent, expired or not, in first-seen order.
func (s *Store) All() []*domain.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Intent, 0, len(s.intents))
	for _, in := range s.intents {
		out = append(out, in.Clone())
	}
	sortBySeq(out)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.intents)
}

// Remove drops an intent and reports whether it existed.
func (s *Store) Remove(id domain.IntentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.intents[id]; !ok {
		return false
	}
	delete(s.intents, id)
	return true
}

// Expire drops every intent whose deadline passed and returns them.
func (s *Store) Expire(now uint64) []*domain.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*domain.Intent
	for id, in := range s.intents {
		if Expired(in, now) {
			expired = append(expired, in)
			delete(s.intents, id)
		}
	}
	sortBySeq(expired)
	return expired
}

// Update is the outcome of applying one resolved intent.
type Update struct {
	ID      domain.IntentID
	Intent  *domain.Intent // remaining intent, nil when removed
	Removed bool
}

// ApplyResolved consumes resolved intents. Fully filled intents are removed;
// partial ones keep the unfilled remainder. Either every resolved intent is
// applied or none is.
func (s *Store) ApplyResolved(resolved []domain.ResolvedIntent) ([]Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[domain.IntentID]struct{}, len(resolved))
	for _, r := range resolved {
		if _, ok := s.intents[r.ID]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s resolved twice", ErrDuplicateIntent, r.ID)
		}
		seen[r.ID] = struct{}{}
	}

	updates := make([]Update, 0, len(resolved))
	for _, r := range resolved {
		in := s.intents[r.ID]
		left, ok := Remaining(in, r)
		if !ok {
			delete(s.intents, r.ID)
			updates = append(updates, Update{ID: r.ID, Removed: true})
			continue
		}
		next := in.Clone()
		next.Swap = left
		s.intents[r.ID] = next
		updates = append(updates, Update{ID: r.ID, Intent: next.Clone()})
	}
	return updates, nil
}

func sortBySeq(in []*domain.Intent) {
	sort.Slice(in, func(i, j int) bool { return in[i].ID.Seq < in[j].ID.Seq })
}
