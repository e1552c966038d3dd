package state

import "iter"

// ParentTable is a capacity-bounded neighbour table keyed by link-layer address.
//
// Entries may be locked (reference counted). When the table is full, the oldest unlocked
// entry is evicted to make room, and the eviction callback runs before the slot is reused.
type ParentTable struct {
	slots   []parentSlot
	onEvict func(ParentId)
	clock   uint64
}

type parentSlot struct {
	used  bool
	locks int
	added uint64
	p     Parent
}

func NewParentTable(capacity int) *ParentTable {
	return &ParentTable{slots: make([]parentSlot, capacity)}
}

// OnEvict registers fn to be called when an entry is reclaimed to make room.
func (t *ParentTable) OnEvict(fn func(ParentId)) {
	t.onEvict = fn
}

// Add returns the entry for addr, creating it if needed. An existing entry is reset but
// keeps its locks. Returns NoParent if the table is full of locked entries.
func (t *ParentTable) Add(addr LinkAddr) ParentId {
	id := t.Lookup(addr)
	if id == NoParent {
		id = t.freeSlot()
		if id == NoParent {
			return NoParent
		}
	}
	s := &t.slots[id]
	t.clock++
	locks := s.locks
	if !s.used {
		locks = 0
	}
	*s = parentSlot{
		used:  true,
		locks: locks,
		added: t.clock,
		p: Parent{
			Addr: addr,
			Dag:  NoDag,
		},
	}
	return id
}

func (t *ParentTable) freeSlot() ParentId {
	victim := NoParent
	for i := range t.slots {
		s := &t.slots[i]
		if !s.used {
			return ParentId(i)
		}
		if s.locks == 0 && (victim == NoParent || s.added < t.slots[victim].added) {
			victim = ParentId(i)
		}
	}
	if victim == NoParent {
		return NoParent
	}
	if t.onEvict != nil {
		t.onEvict(victim)
	}
	t.slots[victim] = parentSlot{}
	return victim
}

// Get returns the entry for id, or nil if the slot is free.
func (t *ParentTable) Get(id ParentId) *Parent {
	if id < 0 || int(id) >= len(t.slots) || !t.slots[id].used {
		return nil
	}
	return &t.slots[id].p
}

// Lookup finds the entry for addr.
func (t *ParentTable) Lookup(addr LinkAddr) ParentId {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].p.Addr == addr {
			return ParentId(i)
		}
	}
	return NoParent
}

func (t *ParentTable) Remove(id ParentId) {
	if t.Get(id) == nil {
		return
	}
	t.slots[id] = parentSlot{}
}

func (t *ParentTable) Lock(id ParentId) {
	if t.Get(id) != nil {
		t.slots[id].locks++
	}
}

func (t *ParentTable) Unlock(id ParentId) {
	if t.Get(id) != nil && t.slots[id].locks > 0 {
		t.slots[id].locks--
	}
}

func (t *ParentTable) Locked(id ParentId) bool {
	return t.Get(id) != nil && t.slots[id].locks > 0
}

// All iterates over live entries. Entries may be removed while iterating.
func (t *ParentTable) All() iter.Seq2[ParentId, *Parent] {
	return func(yield func(ParentId, *Parent) bool) {
		for i := range t.slots {
			if t.slots[i].used && !yield(ParentId(i), &t.slots[i].p) {
				return
			}
		}
	}
}

func (t *ParentTable) Len() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].used {
			n++
		}
	}
	return n
}
