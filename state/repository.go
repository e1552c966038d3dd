package state

import (
	"iter"
	"net/netip"
)

// Repository is the fixed instance table. Slots are allocated once, so a DagRef or
// an instance slot stays meaningful until the slot is freed.
type Repository struct {
	Instances []Instance
}

func NewRepository() *Repository {
	r := &Repository{Instances: make([]Instance, MaxInstances)}
	for i := range r.Instances {
		r.Instances[i].Slot = i
		r.Instances[i].Current = -1
		r.Instances[i].Dags = make([]Dag, MaxDagPerInstance)
	}
	return r
}

// Instance returns the live instance with the given id, or nil.
func (r *Repository) Instance(id InstanceId) *Instance {
	for i := range r.Instances {
		if r.Instances[i].Used && r.Instances[i].Id == id {
			return &r.Instances[i]
		}
	}
	return nil
}

// AllocInstance claims a free slot, or returns nil when the table is full.
func (r *Repository) AllocInstance(id InstanceId) *Instance {
	for i := range r.Instances {
		inst := &r.Instances[i]
		if inst.Used {
			continue
		}
		dags := inst.Dags
		clear(dags)
		*inst = Instance{
			Used:    true,
			Slot:    i,
			Id:      id,
			Current: -1,
			Dags:    dags,
		}
		return inst
	}
	return nil
}

// AllocDag claims a free DAG slot in inst, or returns nil when its table is full.
func (r *Repository) AllocDag(inst *Instance) *Dag {
	for j := range inst.Dags {
		if inst.Dags[j].Used {
			continue
		}
		inst.Dags[j] = Dag{
			Used:      true,
			Ref:       DagRef{Instance: inst.Slot, Slot: j},
			Rank:      InfiniteRank,
			MinRank:   InfiniteRank,
			Preferred: NoParent,
		}
		return &inst.Dags[j]
	}
	return nil
}

// Dag resolves a handle, returning nil for stale or invalid handles.
func (r *Repository) Dag(ref DagRef) *Dag {
	if !ref.Valid() || ref.Instance >= len(r.Instances) {
		return nil
	}
	inst := &r.Instances[ref.Instance]
	if !inst.Used || ref.Slot >= len(inst.Dags) || !inst.Dags[ref.Slot].Used {
		return nil
	}
	return &inst.Dags[ref.Slot]
}

// InstanceOf returns the instance owning the DAG slot referenced by ref.
func (r *Repository) InstanceOf(ref DagRef) *Instance {
	if !ref.Valid() || ref.Instance >= len(r.Instances) || !r.Instances[ref.Instance].Used {
		return nil
	}
	return &r.Instances[ref.Instance]
}

// FindDag returns the live DAG identified by (id, dagId).
func (r *Repository) FindDag(id InstanceId, dagId netip.Addr) *Dag {
	inst := r.Instance(id)
	if inst == nil {
		return nil
	}
	for dag := range inst.UsedDags() {
		if dag.Id == dagId {
			return dag
		}
	}
	return nil
}

// All iterates over live instances.
func (r *Repository) All() iter.Seq[*Instance] {
	return func(yield func(*Instance) bool) {
		for i := range r.Instances {
			if r.Instances[i].Used && !yield(&r.Instances[i]) {
				return
			}
		}
	}
}

// UsedDags iterates over the live DAGs of the instance.
func (i *Instance) UsedDags() iter.Seq[*Dag] {
	return func(yield func(*Dag) bool) {
		for j := range i.Dags {
			if i.Dags[j].Used && !yield(&i.Dags[j]) {
				return
			}
		}
	}
}
