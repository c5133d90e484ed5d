package tracker

import "sync"

type Change int

const (
	// ChangeNone: the incoming snapshot was stale or irrelevant.
	ChangeNone Change = iota
	// ChangeAppend: exactly one coordinate was appended; consumers may take
	// the incremental path.
	ChangeAppend
	// ChangeReplace: the snapshot replaced the current state wholesale.
	ChangeReplace
	// ChangeCleared: the trip completed and live state was dropped.
	ChangeCleared
)

// Reducer merges trip snapshots from any delivery path into one logical
// state, ordered by sequence number. Last sequence wins, never last arrival.
type Reducer struct {
	mu      sync.Mutex
	current *Snapshot
}

func NewReducer() *Reducer { return &Reducer{} }

func (r *Reducer) Apply(incoming Snapshot) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current
	sameTrip := cur != nil && cur.TransactionID == incoming.TransactionID

	if sameTrip && incoming.Sequence <= cur.Sequence {
		return ChangeNone
	}
	// A completed echo for some other trip must not clobber the live one.
	if !sameTrip && !incoming.Active() {
		if cur != nil {
			return ChangeNone
		}
		// nothing tracked: a completed snapshot has nothing to clear
		return ChangeNone
	}

	if incoming.Status == StatusCompleted {
		r.current = nil
		return ChangeCleared
	}

	change := ChangeReplace
	if sameTrip && appendedOne(cur.Coordinates, incoming.Coordinates) {
		change = ChangeAppend
	}
	snap := incoming
	r.current = &snap
	return change
}

func (r *Reducer) Current() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Snapshot{}, false
	}
	return *r.current, true
}

func (r *Reducer) LastSequence() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return 0
	}
	return r.current.Sequence
}

// appendedOne reports whether next is prev plus exactly one trailing point.
func appendedOne(prev, next []Position) bool {
	if len(next) != len(prev)+1 {
		return false
	}
	if len(prev) == 0 {
		return true
	}
	last := prev[len(prev)-1]
	cand := next[len(next)-2]
	return last.Lat == cand.Lat && last.Lon == cand.Lon && last.Timestamp.Equal(cand.Timestamp)
}
