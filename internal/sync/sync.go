// Package sync mirrors the remote document tree into the entity store. It
// owns the gateway subscriptions: users and groups are always watched, and
// the record collections for the active (group, month) scope are swapped as
// the scope changes.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hisaab-app/hisaab-backend/internal/gateway"
	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/store"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

// Scope identifies which record collections are live: a group (or the global
// scope when GroupID is empty) and a calendar month.
type Scope struct {
	GroupID string
	Month   string
}

func (s Scope) scopeKey() string {
	if s.GroupID == "" {
		return models.GlobalScope
	}
	return s.GroupID
}

// Syncer keeps the entity store aligned with the remote tree.
type Syncer struct {
	gw gateway.Gateway
	st *store.Store

	mu        sync.Mutex
	baseSubs  []gateway.Subscription
	scopeSubs []gateway.Subscription
	scope     Scope

	// token invalidates in-flight deliveries from a torn-down scope.
	token int
}

// New builds a Syncer over gw and st. Call Start before use.
func New(gw gateway.Gateway, st *store.Store) *Syncer {
	return &Syncer{gw: gw, st: st}
}

// Start subscribes the always-on users and groups paths.
func (s *Syncer) Start(ctx context.Context) error {
	userSub, err := s.gw.Subscribe(ctx, models.RootUsers, func(snap gateway.Snapshot) {
		gen := s.st.Clock()
		users, err := decodeKeyed[models.User](snap.Data, func(u *models.User, key string) {
			u.Mobile = key
		})
		if err != nil {
			logger.L().Warnw("discarding malformed users snapshot", "error", err)
			return
		}
		s.st.SnapshotUsers(users, gen)
	})
	if err != nil {
		return fmt.Errorf("subscribe users: %w", err)
	}

	groupSub, err := s.gw.Subscribe(ctx, models.RootGroups, func(snap gateway.Snapshot) {
		gen := s.st.Clock()
		groups, err := decodeKeyed[models.Group](snap.Data, func(g *models.Group, key string) {
			g.ID = key
		})
		if err != nil {
			logger.L().Warnw("discarding malformed groups snapshot", "error", err)
			return
		}
		s.st.SnapshotGroups(groups, gen)
	})
	if err != nil {
		userSub.Unsubscribe()
		return fmt.Errorf("subscribe groups: %w", err)
	}

	s.mu.Lock()
	s.baseSubs = []gateway.Subscription{userSub, groupSub}
	s.mu.Unlock()
	return nil
}

// SetScope tears down the previous record subscriptions and subscribes the
// payments and loans collections for the new scope. Deliveries still in
// flight from the old scope are discarded.
func (s *Syncer) SetScope(ctx context.Context, scope Scope) error {
	s.mu.Lock()
	s.token++
	token := s.token
	old := s.scopeSubs
	s.scopeSubs = nil
	s.scope = scope
	s.mu.Unlock()

	for _, sub := range old {
		sub.Unsubscribe()
	}
	s.st.ClearScope()

	if scope.Month == "" {
		return nil
	}

	var subs []gateway.Subscription
	for _, root := range []string{models.RootPayments, models.RootLoans} {
		root := root
		path := models.MonthPath(root, scope.scopeKey(), scope.Month)
		sub, err := s.gw.Subscribe(ctx, path, func(snap gateway.Snapshot) {
			gen := s.st.Clock()
			recs, err := decodeKeyed[models.Record](snap.Data, func(r *models.Record, key string) {
				r.ID = key
			})
			if err != nil {
				logger.L().Warnw("discarding malformed records snapshot", "path", path, "error", err)
				return
			}
			s.mu.Lock()
			stale := s.token != token
			s.mu.Unlock()
			if stale {
				return
			}
			s.st.SnapshotRecords(root, recs, gen)
		})
		if err != nil {
			for _, prev := range subs {
				prev.Unsubscribe()
			}
			return fmt.Errorf("subscribe %s: %w", path, err)
		}
		subs = append(subs, sub)
	}

	s.mu.Lock()
	if s.token != token {
		// Another SetScope raced us; ours is already obsolete.
		s.mu.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		return nil
	}
	s.scopeSubs = subs
	s.mu.Unlock()
	return nil
}

// Scope returns the active scope.
func (s *Syncer) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Months lists the calendar months that hold records for root and groupID,
// without fetching any record values.
func (s *Syncer) Months(ctx context.Context, root, groupID string) ([]string, error) {
	scope := groupID
	if scope == "" {
		scope = models.GlobalScope
	}
	return s.gw.ListChildKeys(ctx, models.ScopePath(root, scope))
}

// Close tears down every subscription.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.token++
	subs := append(s.baseSubs, s.scopeSubs...)
	s.baseSubs = nil
	s.scopeSubs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// decodeKeyed unmarshals a collection snapshot into a map of entities,
// injecting each child key into its entity.
func decodeKeyed[T any](data json.RawMessage, setKey func(*T, string)) (map[string]T, error) {
	out := make(map[string]T)
	if data == nil {
		return out, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for key, val := range raw {
		var entity T
		if err := json.Unmarshal(val, &entity); err != nil {
			return nil, err
		}
		setKey(&entity, key)
		out[key] = entity
	}
	return out, nil
}
