package gesturelatch

import (
	"sort"
	"sync"

	"github.com/e7canasta/orion-depth/modules/interaction"
)

// Key identifies one hand of one tracked user.
type Key struct {
	TrackingID int
	Hand       interaction.HandType
}

// Table is the set of currently latched hands. Safe for concurrent use.
// Create it with NewTable.
type Table struct {
	mu      sync.Mutex
	latched map[Key]struct{}
	owned   bool

	// absent counts consecutive ticks a latched user id was missing.
	absent map[int]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		latched: make(map[Key]struct{}),
		absent:  make(map[int]int),
	}
}

// Latch marks k as gripped.
func (t *Table) Latch(k Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latched[k] = struct{}{}
}

// Release clears k. Releasing an unlatched key is a no-op.
func (t *Table) Release(k Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.latched, k)
}

// IsLatched reports whether k is gripped.
func (t *Table) IsLatched(k Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.latched[k]
	return ok
}

// Len returns the number of latched hands.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.latched)
}

// Keys returns the latched keys ordered by tracking id, then hand.
func (t *Table) Keys() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]Key, 0, len(t.latched))
	for k := range t.latched {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TrackingID != keys[j].TrackingID {
			return keys[i].TrackingID < keys[j].TrackingID
		}
		return keys[i].Hand < keys[j].Hand
	})
	return keys
}

// claim binds the table to one subscription.
func (t *Table) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.owned {
		return false
	}
	t.owned = true
	if t.latched == nil {
		t.latched = make(map[Key]struct{})
		t.absent = make(map[int]int)
	}
	return true
}

// Apply runs the latch transition over one tick's records in place.
//
// Per hand pointer: Grip latches, GripRelease releases, anything else on a
// latched hand is rewritten to Grip. Records are never dropped or reordered.
// When evictAfter > 0, latches of a user id missing for evictAfter
// consecutive ticks are released; the number of evicted keys is returned.
func (t *Table) Apply(users []interaction.UserInfo, evictAfter int) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range users {
		u := &users[i]
		for j := range u.HandPointers {
			hp := &u.HandPointers[j]
			k := Key{TrackingID: u.SkeletonTrackingID, Hand: hp.HandType}

			switch hp.HandEventType {
			case interaction.HandEventGrip:
				t.latched[k] = struct{}{}
			case interaction.HandEventGripRelease:
				delete(t.latched, k)
			default:
				if _, ok := t.latched[k]; ok {
					hp.HandEventType = interaction.HandEventGrip
				}
			}
		}
	}

	if evictAfter <= 0 {
		return 0
	}
	return t.evict(users, evictAfter)
}

func (t *Table) evict(users []interaction.UserInfo, after int) int {
	present := make(map[int]bool, len(users))
	for _, u := range users {
		present[u.SkeletonTrackingID] = true
	}

	missing := make(map[int]bool)
	for k := range t.latched {
		if present[k.TrackingID] {
			delete(t.absent, k.TrackingID)
			continue
		}
		missing[k.TrackingID] = true
	}
	for id := range missing {
		t.absent[id]++
	}

	evicted := 0
	for id, n := range t.absent {
		if !t.holds(id) {
			// released by GripRelease before reaching the threshold
			delete(t.absent, id)
			continue
		}
		if n < after {
			continue
		}
		for k := range t.latched {
			if k.TrackingID == id {
				delete(t.latched, k)
				evicted++
			}
		}
		delete(t.absent, id)
	}
	return evicted
}

func (t *Table) holds(id int) bool {
	for k := range t.latched {
		if k.TrackingID == id {
			return true
		}
	}
	return false
}

// tracked returns the number of user ids with a pending absence count.
func (t *Table) tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.absent)
}
