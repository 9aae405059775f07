package usecase

import (
	"sync"

	"faindi/internal/domain/entity"
)

// tentativeSet tracks local changes applied ahead of their server call.
// Each id reports the status of its most recent mutation. A reset starts a
// new epoch; mutations begun before it never undo into the emptied cache.
type tentativeSet struct {
	kind     string
	observer Observer

	mu     sync.Mutex
	seq    uint64
	epoch  uint64
	latest map[string]uint64
	status map[string]entity.MutationStatus
}

type mutation struct {
	set   *tentativeSet
	id    string
	seq   uint64
	epoch uint64
	undo  func()
	done  bool
}

func newTentativeSet(kind string, observer Observer) *tentativeSet {
	if observer == nil {
		observer = nopObserver{}
	}
	return &tentativeSet{
		kind:     kind,
		observer: observer,
		latest:   make(map[string]uint64),
		status:   make(map[string]entity.MutationStatus),
	}
}

// begin runs apply and records the mutation as pending. undo must revert
// exactly what apply did.
func (t *tentativeSet) begin(id string, apply, undo func()) *mutation {
	m, _ := t.tryBegin(id, func() bool {
		apply()
		return true
	}, undo)
	return m
}

// tryBegin is begin for changes that may turn out to be no-ops once the
// cache lock is held. When apply reports false nothing is recorded.
func (t *tentativeSet) tryBegin(id string, apply func() bool, undo func()) (*mutation, bool) {
	t.mu.Lock()
	epoch := t.epoch
	t.mu.Unlock()

	if !apply() {
		return nil, false
	}

	t.mu.Lock()
	t.seq++
	m := &mutation{set: t, id: id, seq: t.seq, epoch: epoch, undo: undo}
	t.latest[id] = m.seq
	t.status[id] = entity.MutationPending
	t.mu.Unlock()

	t.observer.ObserveMutation(t.kind, string(entity.MutationPending))
	return m, true
}

func (m *mutation) commit() {
	m.finish(entity.MutationCommitted)
}

// fail reverts the local change unless the set was reset since begin.
func (m *mutation) fail() {
	if m.done {
		return
	}
	if m.undo != nil && m.current() {
		m.undo()
	}
	m.finish(entity.MutationFailed)
}

func (m *mutation) current() bool {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()
	return m.set.epoch == m.epoch
}

func (m *mutation) finish(status entity.MutationStatus) {
	if m.done {
		return
	}
	m.done = true

	t := m.set
	t.mu.Lock()
	if t.latest[m.id] == m.seq {
		t.status[m.id] = status
	}
	t.mu.Unlock()

	t.observer.ObserveMutation(t.kind, string(status))
}

func (t *tentativeSet) statusOf(id string) (entity.MutationStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.status[id]
	return s, ok
}

func (t *tentativeSet) reset() {
	t.mu.Lock()
	t.epoch++
	t.latest = make(map[string]uint64)
	t.status = make(map[string]entity.MutationStatus)
	t.mu.Unlock()
}
