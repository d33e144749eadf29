package gateway

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
)

// Memory is an in-process document tree. It backs tests and single-node
// deployments; semantics match the networked drivers.
type Memory struct {
	mu     sync.Mutex
	root   map[string]any
	subs   map[int]*memSub
	nextID int
	closed bool
}

type memSub struct {
	id   int
	path string
	fn   Handler
	gw   *Memory
}

func (s *memSub) Unsubscribe() {
	s.gw.mu.Lock()
	delete(s.gw.subs, s.id)
	s.gw.mu.Unlock()
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		root: make(map[string]any),
		subs: make(map[int]*memSub),
	}
}

var _ Gateway = (*Memory)(nil)

func (m *Memory) Read(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.lookup(path)
	if !ok {
		return nil, nil
	}
	data, err := json.Marshal(node)
	if err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	return data, nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	val, err := normalize(value)
	if err != nil {
		return apperr.RemoteIO("write", path, err)
	}
	m.mu.Lock()
	m.set(path, val)
	snaps := m.pending(path)
	m.mu.Unlock()
	deliver(snaps)
	return nil
}

func (m *Memory) Merge(ctx context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	node, ok := m.lookup(path)
	obj, isMap := node.(map[string]any)
	if !ok || !isMap {
		obj = make(map[string]any)
	}
	for k, v := range fields {
		if v == nil {
			delete(obj, k)
			continue
		}
		val, err := normalize(v)
		if err != nil {
			m.mu.Unlock()
			return apperr.RemoteIO("merge", path, err)
		}
		obj[k] = val
	}
	m.set(path, obj)
	snaps := m.pending(path)
	m.mu.Unlock()
	deliver(snaps)
	return nil
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	m.delete(path)
	snaps := m.pending(path)
	m.mu.Unlock()
	deliver(snaps)
	return nil
}

func (m *Memory) Append(ctx context.Context, path string, value any) (string, error) {
	key := NewPushKey()
	if err := m.Write(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	m.mu.Lock()
	m.nextID++
	sub := &memSub{id: m.nextID, path: path, fn: fn, gw: m}
	m.subs[sub.id] = sub
	snap := m.snapshot(path)
	m.mu.Unlock()
	fn(snap)
	return sub, nil
}

func (m *Memory) ListChildKeys(ctx context.Context, path string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.lookup(path)
	if !ok {
		return nil, nil
	}
	obj, isMap := node.(map[string]any)
	if !isMap {
		return nil, nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.subs = make(map[int]*memSub)
	m.mu.Unlock()
	return nil
}

// lookup walks the tree. Caller holds mu.
func (m *Memory) lookup(path string) (any, bool) {
	var node any = m.root
	for _, seg := range splitPath(path) {
		obj, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// set writes val at path, creating intermediate objects. Caller holds mu.
func (m *Memory) set(path string, val any) {
	segs := splitPath(path)
	if len(segs) == 0 {
		if obj, ok := val.(map[string]any); ok {
			m.root = obj
		}
		return
	}
	cur := m.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = val
}

// delete removes path and prunes emptied ancestors. Caller holds mu.
func (m *Memory) delete(path string) {
	segs := splitPath(path)
	if len(segs) == 0 {
		m.root = make(map[string]any)
		return
	}
	parents := make([]map[string]any, 0, len(segs))
	cur := m.root
	for _, seg := range segs[:len(segs)-1] {
		parents = append(parents, cur)
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
	for i := len(parents) - 1; i >= 0; i-- {
		if len(cur) != 0 {
			break
		}
		delete(parents[i], segs[i])
		cur = parents[i]
	}
}

// snapshot builds the current snapshot of path. Caller holds mu.
func (m *Memory) snapshot(path string) Snapshot {
	node, ok := m.lookup(path)
	if !ok {
		return Snapshot{Path: path}
	}
	data, err := json.Marshal(node)
	if err != nil {
		return Snapshot{Path: path}
	}
	return Snapshot{Path: path, Data: data}
}

type delivery struct {
	fn   Handler
	snap Snapshot
}

// pending collects deliveries for subscribers affected by a change at
// changed. Caller holds mu; handlers run after it is released.
func (m *Memory) pending(changed string) []delivery {
	if m.closed {
		return nil
	}
	var out []delivery
	for _, sub := range m.subs {
		if pathsOverlap(changed, sub.path) {
			out = append(out, delivery{fn: sub.fn, snap: m.snapshot(sub.path)})
		}
	}
	return out
}

func deliver(snaps []delivery) {
	for _, d := range snaps {
		d.fn(d.snap)
	}
}

// normalize round-trips value through JSON so the tree only holds plain
// maps, slices and primitives.
func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
