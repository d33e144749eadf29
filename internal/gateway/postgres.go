package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hisaab-app/hisaab-backend/internal/apperr"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

const pgChangeChannel = "doc_changes"

// Postgres stores documents in a single jsonb table keyed by path. A trigger
// emits pg_notify on every row change; a dedicated listener connection turns
// those into subscriber deliveries, so local and remote writes fan out the
// same way.
type Postgres struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	subs   map[int]*pgSub
	nextID int

	cancel context.CancelFunc
}

type pgSub struct {
	id   int
	path string
	fn   Handler
	gw   *Postgres
}

func (s *pgSub) Unsubscribe() {
	s.gw.mu.Lock()
	delete(s.gw.subs, s.id)
	s.gw.mu.Unlock()
}

// NewPostgres wraps pool as a document gateway and starts the LISTEN loop.
func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Postgres{
		pool:   pool,
		subs:   make(map[int]*pgSub),
		cancel: cancel,
	}
	go g.listen(ctx)
	return g, nil
}

var _ Gateway = (*Postgres)(nil)

func (g *Postgres) Read(ctx context.Context, path string) (json.RawMessage, error) {
	var data json.RawMessage
	err := g.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE path = $1`, path).Scan(&data)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
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

	return g.assemble(ctx, path)
}

func (g *Postgres) Write(ctx context.Context, path string, value any) error {
	// Writes land inside the enclosing document when one exists, so a field
	// write like groups/1/editRequest updates the stored group document.
	docPath, doc, err := g.enclosingDoc(ctx, path)
	if err != nil {
		return apperr.RemoteIO("write", path, err)
	}
	if doc != nil {
		setNested(doc, splitPath(strings.TrimPrefix(path, docPath+"/")), value)
		return g.upsert(ctx, docPath, doc, path)
	}
	return g.upsert(ctx, path, value, path)
}

func (g *Postgres) upsert(ctx context.Context, docPath string, value any, changed string) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperr.RemoteIO("write", changed, err)
	}
	_, err = g.pool.Exec(ctx, `
		INSERT INTO documents (path, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (path)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		docPath, data)
	return apperr.RemoteIO("write", changed, err)
}

// enclosingDoc finds the deepest stored document at a proper ancestor of
// path. Returns ("", nil, nil) when none exists.
func (g *Postgres) enclosingDoc(ctx context.Context, path string) (string, map[string]any, error) {
	for _, anc := range ancestors(path) {
		var data json.RawMessage
		err := g.pool.QueryRow(ctx,
			`SELECT data FROM documents WHERE path = $1`, anc).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
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

func (g *Postgres) Merge(ctx context.Context, path string, fields map[string]any) error {
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

func (g *Postgres) Remove(ctx context.Context, path string) error {
	_, err := g.pool.Exec(ctx,
		`DELETE FROM documents WHERE path = $1 OR path LIKE $1 || '/%'`, path)
	if err != nil {
		return apperr.RemoteIO("remove", path, err)
	}

	// Also clear the field when the path sits inside a stored document.
	docPath, doc, err := g.enclosingDoc(ctx, path)
	if err != nil {
		return apperr.RemoteIO("remove", path, err)
	}
	if doc != nil {
		deleteNested(doc, splitPath(strings.TrimPrefix(path, docPath+"/")))
		return g.upsert(ctx, docPath, doc, path)
	}
	return nil
}

func (g *Postgres) Append(ctx context.Context, path string, value any) (string, error) {
	key := NewPushKey()
	if err := g.Write(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (g *Postgres) Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error) {
	g.mu.Lock()
	g.nextID++
	sub := &pgSub{id: g.nextID, path: path, fn: fn, gw: g}
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

func (g *Postgres) ListChildKeys(ctx context.Context, path string) ([]string, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT DISTINCT split_part(substr(path, length($1) + 2), '/', 1)
		FROM documents WHERE path LIKE $1 || '/%'`, path)
	if err != nil {
		return nil, apperr.RemoteIO("list", path, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, apperr.RemoteIO("list", path, err)
		}
		if k != "" {
			seen[k] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.RemoteIO("list", path, err)
	}

	// A document stored whole at the path contributes its field names.
	var data json.RawMessage
	err = g.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE path = $1`, path).Scan(&data)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
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

func (g *Postgres) Close() error {
	g.cancel()
	return nil
}

// assemble builds an object for an unstored intermediate path from the rows
// below it. Returns (nil, nil) when nothing exists there.
func (g *Postgres) assemble(ctx context.Context, path string) (json.RawMessage, error) {
	rows, err := g.pool.Query(ctx,
		`SELECT path, data FROM documents WHERE path LIKE $1 || '/%'`, path)
	if err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	defer rows.Close()

	tree := make(map[string]any)
	found := false
	for rows.Next() {
		var rowPath string
		var data json.RawMessage
		if err := rows.Scan(&rowPath, &data); err != nil {
			return nil, apperr.RemoteIO("read", path, err)
		}
		var val any
		if err := json.Unmarshal(data, &val); err != nil {
			return nil, apperr.RemoteIO("read", path, err)
		}
		insertAt(tree, splitPath(strings.TrimPrefix(rowPath, path+"/")), val)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	if !found {
		return nil, nil
	}

	out, err := json.Marshal(tree)
	if err != nil {
		return nil, apperr.RemoteIO("read", path, err)
	}
	return out, nil
}

// listen holds a dedicated connection on the notify channel and fans changes
// out to overlapping subscribers. The connection is re-acquired after errors.
func (g *Postgres) listen(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := g.pool.Acquire(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.L().Warnw("failed to acquire listen connection", "error", err)
			}
			continue
		}
		if _, err := conn.Exec(ctx, "LISTEN "+pgChangeChannel); err != nil {
			logger.L().Warnw("failed to LISTEN for document changes", "error", err)
			conn.Release()
			continue
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				break
			}
			g.fanout(n.Payload)
		}
		conn.Release()
	}
}

func (g *Postgres) fanout(changed string) {
	g.mu.Lock()
	targets := make([]*pgSub, 0, len(g.subs))
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
