// Package store is the in-memory reactive cache of synced entities: users,
// groups and the record sets for the active (group, month) scope.
//
// Every entry carries a generation stamp. Optimistic local patches advance
// the store clock; authoritative snapshots are applied with the clock value
// captured when they arrived, so a snapshot that raced an optimistic patch
// cannot roll the patch back. The authoritative state still wins on the next
// snapshot delivery, which carries a later generation.
package store

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/hisaab-app/hisaab-backend/internal/models"
)

// Event announces a cache change to watchers. ID is empty when a whole
// snapshot replaced the scope.
type Event struct {
	// Scope is "users", "groups", or a record collection root such as
	// "payments" or "loans".
	Scope string
	ID    string
}

type entry[T any] struct {
	val T
	gen uint64
}

// Store caches synced entities. All accessors return deep clones; callers
// never alias cache memory.
type Store struct {
	mu    sync.RWMutex
	clock uint64

	users   map[string]entry[models.User]
	groups  map[string]entry[models.Group]
	records map[string]map[string]entry[models.Record]

	watchers map[int]func(Event)
	nextID   int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]entry[models.User]),
		groups:   make(map[string]entry[models.Group]),
		records:  make(map[string]map[string]entry[models.Record]),
		watchers: make(map[int]func(Event)),
	}
}

// Clock returns the current generation. Capture it before decoding a remote
// snapshot and pass it to the Snapshot* methods.
func (s *Store) Clock() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// Watch registers fn for change events. The returned cancel func is
// idempotent. Watchers run synchronously after the mutation commits.
func (s *Store) Watch(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// PutUser applies an optimistic local patch for a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	s.clock++
	s.users[u.Mobile] = entry[models.User]{val: clone(u), gen: s.clock}
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: "users", ID: u.Mobile})
}

// DeleteUser applies an optimistic local removal.
func (s *Store) DeleteUser(mobile string) {
	s.mu.Lock()
	s.clock++
	delete(s.users, mobile)
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: "users", ID: mobile})
}

// SnapshotUsers replaces the user cache with an authoritative snapshot taken
// at generation gen. Entries patched optimistically after gen are kept.
func (s *Store) SnapshotUsers(users map[string]models.User, gen uint64) {
	s.mu.Lock()
	next := make(map[string]entry[models.User], len(users))
	for k, v := range users {
		next[k] = entry[models.User]{val: clone(v), gen: gen}
	}
	for k, e := range s.users {
		if e.gen > gen {
			next[k] = e
		}
	}
	s.users = next
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: "users"})
}

// User returns a clone of the cached user.
func (s *Store) User(mobile string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.users[mobile]
	if !ok {
		return models.User{}, false
	}
	return clone(e.val), true
}

// Users returns all cached users sorted by mobile.
func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, e := range s.users {
		out = append(out, clone(e.val))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mobile < out[j].Mobile })
	return out
}

// PutGroup applies an optimistic local patch for a group.
func (s *Store) PutGroup(g models.Group) {
	s.mu.Lock()
	s.clock++
	s.groups[g.ID] = entry[models.Group]{val: clone(g), gen: s.clock}
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: "groups", ID: g.ID})
}

// DeleteGroup applies an optimistic local removal.
func (s *Store) DeleteGroup(id string) {
	s.mu.Lock()
	s.clock++
	delete(s.groups, id)
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: "groups", ID: id})
}

// SnapshotGroups replaces the group cache with an authoritative snapshot
// taken at generation gen.
func (s *Store) SnapshotGroups(groups map[string]models.Group, gen uint64) {
	s.mu.Lock()
	next := make(map[string]entry[models.Group], len(groups))
	for k, v := range groups {
		next[k] = entry[models.Group]{val: clone(v), gen: gen}
	}
	for k, e := range s.groups {
		if e.gen > gen {
			next[k] = e
		}
	}
	s.groups = next
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: "groups"})
}

// Group returns a clone of the cached group.
func (s *Store) Group(id string) (models.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.groups[id]
	if !ok {
		return models.Group{}, false
	}
	return clone(e.val), true
}

// Groups returns all cached groups sorted by id (chronological, ids are
// millisecond timestamps).
func (s *Store) Groups() []models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Group, 0, len(s.groups))
	for _, e := range s.groups {
		out = append(out, clone(e.val))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutRecord applies an optimistic local patch for a record in the given
// collection root.
func (s *Store) PutRecord(root string, r models.Record) {
	s.mu.Lock()
	s.clock++
	set, ok := s.records[root]
	if !ok {
		set = make(map[string]entry[models.Record])
		s.records[root] = set
	}
	set[r.ID] = entry[models.Record]{val: clone(r), gen: s.clock}
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: root, ID: r.ID})
}

// DeleteRecord applies an optimistic local removal.
func (s *Store) DeleteRecord(root, id string) {
	s.mu.Lock()
	s.clock++
	if set, ok := s.records[root]; ok {
		delete(set, id)
	}
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: root, ID: id})
}

// SnapshotRecords replaces a collection's record cache with an authoritative
// snapshot taken at generation gen.
func (s *Store) SnapshotRecords(root string, recs map[string]models.Record, gen uint64) {
	s.mu.Lock()
	next := make(map[string]entry[models.Record], len(recs))
	for k, v := range recs {
		next[k] = entry[models.Record]{val: clone(v), gen: gen}
	}
	for k, e := range s.records[root] {
		if e.gen > gen {
			next[k] = e
		}
	}
	s.records[root] = next
	fns := s.watcherList()
	s.mu.Unlock()
	emit(fns, Event{Scope: root})
}

// Record returns a clone of the cached record.
func (s *Store) Record(root, id string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[root][id]
	if !ok {
		return models.Record{}, false
	}
	return clone(e.val), true
}

// Records returns a collection's cached records sorted by id. Push-style ids
// make this chronological insertion order.
func (s *Store) Records(root string) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.records[root]
	out := make([]models.Record, 0, len(set))
	for _, e := range set {
		out = append(out, clone(e.val))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClearScope drops all cached record collections. Called when the sync scope
// changes.
func (s *Store) ClearScope() {
	s.mu.Lock()
	roots := make([]string, 0, len(s.records))
	for root := range s.records {
		roots = append(roots, root)
	}
	s.records = make(map[string]map[string]entry[models.Record])
	fns := s.watcherList()
	s.mu.Unlock()
	for _, root := range roots {
		emit(fns, Event{Scope: root})
	}
}

// watcherList snapshots the watcher set. Caller holds mu.
func (s *Store) watcherList() []func(Event) {
	fns := make([]func(Event), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	return fns
}

func emit(fns []func(Event), ev Event) {
	for _, fn := range fns {
		fn(ev)
	}
}

// clone deep-copies an entity through its JSON form. Entities are plain data
// so the round trip is lossless.
func clone[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
