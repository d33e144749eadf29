// internal/socket/broadcaster.go
package socket

import (
	"encoding/json"
	"time"

	"github.com/hisaab-app/hisaab-backend/internal/models"
	"github.com/hisaab-app/hisaab-backend/internal/store"
)

// Room name prefixes. Group rooms carry a group's live updates; user rooms
// carry direct pushes for one account.
const (
	groupRoomPrefix = "group:"
	userRoomPrefix  = "user:"
)

// RoomForGroup names the room carrying one group's live updates.
func RoomForGroup(groupID string) string {
	return groupRoomPrefix + groupID
}

// RoomForUser names the per-user room for direct pushes.
func RoomForUser(mobile string) string {
	return userRoomPrefix + mobile
}

// Broadcaster provides high-level methods for broadcasting events. It is the
// push side of the notification service and the fan-out for cache changes.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// Notification Broadcasting
// ============================================

// PushNotification delivers a realtime copy of an inbox notification to the
// recipient's open connections.
func (b *Broadcaster) PushNotification(recipient string, n models.Notification) {
	b.hub.SendToUser(recipient, MessageNotification, map[string]interface{}{
		"id":        n.ID,
		"type":      n.Type,
		"message":   n.Message,
		"byName":    n.ByName,
		"timestamp": n.Timestamp,
	})
}

// ============================================
// Entity Change Broadcasting
// ============================================

// BroadcastGroupChanged tells a group's room that the group document changed.
func (b *Broadcaster) BroadcastGroupChanged(groupID, excludeMobile string) {
	b.hub.SendToRoom(RoomForGroup(groupID), MessageGroupUpdated, map[string]interface{}{
		"groupId": groupID,
	}, excludeMobile)
}

// BroadcastEntitiesChanged announces a change in a cached collection such as
// users or a month of payment records. Clients refetch what they care about.
func (b *Broadcaster) BroadcastEntitiesChanged(scope, id string) {
	msg := Message{
		Type: MessageRecordsChanged,
		Payload: map[string]interface{}{
			"scope": scope,
			"id":    id,
		},
		Timestamp: time.Now(),
	}
	data, _ := json.Marshal(msg)
	b.hub.broadcast <- data
}

// Relay wires the broadcaster to the entity cache: every cache change is
// forwarded to connected clients. Returns a cancel func.
func (b *Broadcaster) Relay(st *store.Store) (cancel func()) {
	return st.Watch(func(ev store.Event) {
		if ev.Scope == "groups" && ev.ID != "" {
			b.BroadcastGroupChanged(ev.ID, "")
			return
		}
		b.BroadcastEntitiesChanged(ev.Scope, ev.ID)
	})
}
