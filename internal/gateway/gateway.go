// Package gateway abstracts the remote document tree the application syncs
// against. Documents are JSON values addressed by slash-separated paths
// (users/{mobile}, groups/{id}, payments/{scope}/{month}/{id}, ...).
//
// Three drivers implement the same contract: an in-process memory tree, a
// redis-backed tree with pub/sub change fan-out, and a postgres-backed tree
// using LISTEN/NOTIFY. Reading an absent path yields (nil, nil); transport
// failures are wrapped as RemoteIOError and surfaced to the caller, never
// retried here.
package gateway

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Snapshot is one delivery to a subscriber: the subscribed path and its
// current value. Data is nil when the path no longer exists.
type Snapshot struct {
	Path string
	Data json.RawMessage
}

// Handler receives snapshots for a subscribed path. Handlers must not block;
// drivers invoke them from their dispatch goroutine.
type Handler func(Snapshot)

// Subscription is a live watch on a path. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Gateway is the remote document tree contract.
type Gateway interface {
	// Read returns the JSON value at path, or (nil, nil) when absent.
	Read(ctx context.Context, path string) (json.RawMessage, error)

	// Write replaces the value at path.
	Write(ctx context.Context, path string, value any) error

	// Merge sets the given top-level fields of the object at path. A nil
	// field value deletes that field. Merging into an absent path creates
	// the object.
	Merge(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes path and everything under it. Removing an absent
	// path is not an error.
	Remove(ctx context.Context, path string) error

	// Append writes value under a freshly generated child key of path and
	// returns the key. Keys sort chronologically.
	Append(ctx context.Context, path string, value any) (string, error)

	// Subscribe watches path. The handler fires once with the current
	// value, then again whenever path or anything under it changes.
	Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error)

	// ListChildKeys returns the direct child key names under path, sorted.
	ListChildKeys(ctx context.Context, path string) ([]string, error)

	// Close releases driver resources and stops all subscriptions.
	Close() error
}

const pushAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var (
	pushMu   sync.Mutex
	pushRand = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NewPushKey mints an ordered child key: millisecond epoch in base36
// followed by a random suffix to break ties within the same millisecond.
func NewPushKey() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 36))
	pushMu.Lock()
	for i := 0; i < 8; i++ {
		b.WriteByte(pushAlphabet[pushRand.Intn(len(pushAlphabet))])
	}
	pushMu.Unlock()
	return b.String()
}

// pathsOverlap reports whether a change at changed is visible to a
// subscriber of sub: equal paths, changed inside sub's subtree, or changed
// at an ancestor that rewrites sub's subtree wholesale.
func pathsOverlap(changed, sub string) bool {
	return changed == sub ||
		strings.HasPrefix(changed, sub+"/") ||
		strings.HasPrefix(sub, changed+"/")
}

// splitPath breaks a slash path into segments, dropping empties.
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ancestors yields path's proper ancestors, deepest first:
// a/b/c -> a/b, a.
func ancestors(path string) []string {
	var out []string
	for {
		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			return out
		}
		path = path[:i]
		out = append(out, path)
	}
}

// getNested walks segs into a decoded JSON value.
func getNested(node any, segs []string) (any, bool) {
	for _, seg := range segs {
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

// setNested writes val at segs inside obj, creating intermediate objects.
func setNested(obj map[string]any, segs []string, val any) {
	cur := obj
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

// deleteNested removes segs from obj if present.
func deleteNested(obj map[string]any, segs []string) {
	cur := obj
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}
