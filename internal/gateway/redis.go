package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

const (
	redisKeyPrefix  = "doc:"
	redisChangeChan = "hisaab:doc-changes"
)

// Redis stores each document as JSON under doc:<path> and fans out change
// notifications over a pub/sub channel, so every process sees writes from
// every other process.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub

	mu     sync.Mutex
	subs   map[int]*redisSub
	nextID int

	done chan struct{}
}

type redisSub struct {
	id   int
	path string
	fn   Handler
	gw   *Redis
}

func (s *redisSub) Unsubscribe() {
	s.gw.mu.Lock()
	delete(s.gw.subs, s.id)
	s.gw.mu.Unlock()
}

// NewRedis connects to redisURL and starts the change dispatch loop.
func NewRedis(redisURL string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	g := &Redis{
		client: client,
		subs:   make(map[int]*redisSub),
		done:   make(chan struct{}),
	}
	g.pubsub = client.Subscribe(context.Background(), redisChangeChan)
	go g.dispatch()

	logger.L().Infow("connected to redis document store", "addr", opt.Addr)
	return g, nil
}

var _ Gateway = (*Redis)(nil)

func (g *Redis) Read(ctx context.Context, path string) (json.RawMessage, error) {
	data, err := g.client.Get(ctx, redisKeyPrefix+path).Bytes()
	if err == nil {
		return data, nil
	}
	if err != redis.Nil {
		return nil, apperr.RemoteIO("read", path, err)
	}

	// The path may live inside a document stored at an ancestor.
	docPath, doc, err := g.enclosingDoc(ctx, path)
	if err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	if doc != nil {
		val, ok := getNested(doc, splitPath(strings.TrimPrefix(path, docPath+"/")))
		if !ok {
			return nil, nil
		}
		out, err := json.Marshal(val)
		if err != nil {
			return nil, apperr.RemoteIO("read", path, err)
		}
		return out, nil
	}

	// No enclosing document; assemble from descendants, if any.
	return g.assemble(ctx, path)
}

func (g *Redis) Write(ctx context.Context, path string, value any) error {
	// Writes land inside the enclosing document when one exists, so a field
	// write like groups/1/editRequest updates the stored group document.
	docPath, doc, err := g.enclosingDoc(ctx, path)
	if err != nil {
		return apperr.RemoteIO("write", path, err)
	}
	if doc != nil {
		setNested(doc, splitPath(strings.TrimPrefix(path, docPath+"/")), value)
		return g.setDoc(ctx, docPath, doc, path)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return apperr.RemoteIO("write", path, err)
	}
	if err := g.client.Set(ctx, redisKeyPrefix+path, data, 0).Err(); err != nil {
		return apperr.RemoteIO("write", path, err)
	}
	g.publish(ctx, path)
	return nil
}

func (g *Redis) Merge(ctx context.Context, path string, fields map[string]any) error {
	obj := make(map[string]any)
	data, err := g.Read(ctx, path)
	if err != nil {
		return err
	}
	if data != nil {
		if uerr := json.Unmarshal(data, &obj); uerr != nil {
			return apperr.RemoteIO("merge", path, uerr)
		}
	}
	for k, v := range fields {
		if v == nil {
			delete(obj, k)
			continue
		}
		obj[k] = v
	}
	return g.Write(ctx, path, obj)
}

func (g *Redis) Remove(ctx context.Context, path string) error {
	keys, err := g.scan(ctx, redisKeyPrefix+path+"/*")
	if err != nil {
		return apperr.RemoteIO("remove", path, err)
	}
	keys = append(keys, redisKeyPrefix+path)
	if err := g.client.Del(ctx, keys...).Err(); err != nil {
		return apperr.RemoteIO("remove", path, err)
	}

	// Also clear the field when the path sits inside a stored document.
	docPath, doc, err := g.enclosingDoc(ctx, path)
	if err != nil {
		return apperr.RemoteIO("remove", path, err)
	}
	if doc != nil {
		deleteNested(doc, splitPath(strings.TrimPrefix(path, docPath+"/")))
		return g.setDoc(ctx, docPath, doc, path)
	}

	g.publish(ctx, path)
	return nil
}

// enclosingDoc finds the deepest stored document at a proper ancestor of
// path. Returns ("", nil, nil) when none exists.
func (g *Redis) enclosingDoc(ctx context.Context, path string) (string, map[string]any, error) {
	for _, anc := range ancestors(path) {
		data, err := g.client.Get(ctx, redisKeyPrefix+anc).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return "", nil, err
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return "", nil, err
		}
		return anc, doc, nil
	}
	return "", nil, nil
}

func (g *Redis) setDoc(ctx context.Context, docPath string, doc map[string]any, changed string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return apperr.RemoteIO("write", changed, err)
	}
	if err := g.client.Set(ctx, redisKeyPrefix+docPath, data, 0).Err(); err != nil {
		return apperr.RemoteIO("write", changed, err)
	}
	g.publish(ctx, changed)
	return nil
}

func (g *Redis) Append(ctx context.Context, path string, value any) (string, error) {
	key := NewPushKey()
	if err := g.Write(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (g *Redis) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	g.mu.Lock()
	g.nextID++
	sub := &redisSub{id: g.nextID, path: path, fn: fn, gw: g}
	g.subs[sub.id] = sub
	g.mu.Unlock()

	data, err := g.Read(ctx, path)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	fn(Snapshot{Path: path, Data: data})
	return sub, nil
}

func (g *Redis) ListChildKeys(ctx context.Context, path string) ([]string, error) {
	seen := make(map[string]struct{})

	keys, err := g.scan(ctx, redisKeyPrefix+path+"/*")
	if err != nil {
		return nil, apperr.RemoteIO("list", path, err)
	}
	prefix := redisKeyPrefix + path + "/"
	for _, k := range keys {
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = struct{}{}
		}
	}

	// A document stored whole at the path contributes its field names.
	data, err := g.client.Get(ctx, redisKeyPrefix+path).Bytes()
	if err != nil && err != redis.Nil {
		return nil, apperr.RemoteIO("list", path, err)
	}
	if err == nil {
		var obj map[string]json.RawMessage
		if json.Unmarshal(data, &obj) == nil {
			for k := range obj {
				seen[k] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (g *Redis) Close() error {
	close(g.done)
	if g.pubsub != nil {
		_ = g.pubsub.Close()
	}
	return g.client.Close()
}

// assemble builds an object for an unstored intermediate path from the
// documents below it. Returns (nil, nil) when nothing exists there.
func (g *Redis) assemble(ctx context.Context, path string) (json.RawMessage, error) {
	keys, err := g.scan(ctx, redisKeyPrefix+path+"/*")
	if err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	tree := make(map[string]any)
	prefix := redisKeyPrefix + path + "/"
	for _, k := range keys {
		data, err := g.client.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, apperr.RemoteIO("read", path, err)
		}
		var val any
		if err := json.Unmarshal(data, &val); err != nil {
			return nil, apperr.RemoteIO("read", path, err)
		}
		insertAt(tree, splitPath(strings.TrimPrefix(k, prefix)), val)
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	return out, nil
}

func (g *Redis) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := g.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func (g *Redis) publish(ctx context.Context, path string) {
	if err := g.client.Publish(ctx, redisChangeChan, path).Err(); err != nil {
		logger.L().Warnw("failed to publish document change", "path", path, "error", err)
	}
}

// dispatch re-reads and re-delivers subscribed paths as change messages
// arrive. Local writes come back through the same channel, so there is a
// single fan-out route for local and remote changes alike.
func (g *Redis) dispatch() {
	ch := g.pubsub.Channel()
	for {
		select {
		case <-g.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			g.fanout(msg.Payload)
		}
	}
}

func (g *Redis) fanout(changed string) {
	g.mu.Lock()
	targets := make([]*redisSub, 0, len(g.subs))
	for _, sub := range g.subs {
		if pathsOverlap(changed, sub.path) {
			targets = append(targets, sub)
		}
	}
	g.mu.Unlock()

	ctx := context.Background()
	for _, sub := range targets {
		data, err := g.Read(ctx, sub.path)
		if err != nil {
			logger.L().Warnw("failed to refresh subscribed path", "path", sub.path, "error", err)
			continue
		}
		sub.fn(Snapshot{Path: sub.path, Data: data})
	}
}

// insertAt places val into tree at the given relative segments, creating
// intermediate objects.
func insertAt(tree map[string]any, segs []string, val any) {
	if len(segs) == 0 {
		return
	}
	cur := tree
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
