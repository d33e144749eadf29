package socket

import (
	"encoding/json"
	"testing"
)

func membershipPolicy(groups map[string][]string) JoinPolicy {
	return func(mobile, groupID string) bool {
		for _, m := range groups[groupID] {
			if m == mobile {
				return true
			}
		}
		return false
	}
}

func newTestClient(hub *Hub, mobile string) *Client {
	return &Client{
		ID:     "test-" + mobile,
		Mobile: mobile,
		Hub:    hub,
		Send:   make(chan []byte, 4),
		Rooms:  make(map[string]bool),
	}
}

func TestCanJoinEnforcesMembership(t *testing.T) {
	hub := NewHub()
	hub.SetJoinPolicy(membershipPolicy(map[string][]string{
		"100": {"03001111111", "03002222222"},
	}))

	tests := []struct {
		name   string
		mobile string
		room   string
		want   bool
	}{
		{"own user room", "03001111111", "user:03001111111", true},
		{"someone else's user room", "03001111111", "user:03002222222", false},
		{"member joins group room", "03002222222", "group:100", true},
		{"outsider refused from group room", "03003333333", "group:100", false},
		{"unknown group refused", "03001111111", "group:999", false},
		{"unrecognized room refused", "03001111111", "lobby", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hub.CanJoin(tt.mobile, tt.room); got != tt.want {
				t.Errorf("CanJoin(%s, %s) = %v, want %v", tt.mobile, tt.room, got, tt.want)
			}
		})
	}
}

func TestJoinMessageChecksMembership(t *testing.T) {
	hub := NewHub()
	hub.SetJoinPolicy(membershipPolicy(map[string][]string{
		"100": {"03001111111"},
	}))

	outsider := newTestClient(hub, "03002222222")
	outsider.handleMessage([]byte(`{"action":"join","room":"group:100"}`))
	if outsider.Rooms["group:100"] {
		t.Fatal("outsider subscribed to a group room")
	}
	var msg Message
	if err := json.Unmarshal(<-outsider.Send, &msg); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if msg.Type != MessageAck || msg.Payload["action"] != "denied" {
		t.Errorf("expected denied ack, got %+v", msg)
	}

	member := newTestClient(hub, "03001111111")
	member.handleMessage([]byte(`{"action":"join","room":"group:100"}`))
	if !member.Rooms["group:100"] {
		t.Fatal("member could not subscribe to the group room")
	}
}

func TestLeaveKeepsPersonalRoom(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "03001111111")
	hub.JoinRoom(client, RoomForUser(client.Mobile))

	client.handleMessage([]byte(`{"action":"leave","room":"user:03001111111"}`))
	if !client.Rooms[RoomForUser(client.Mobile)] {
		t.Fatal("client must stay in its personal room")
	}
	var msg Message
	if err := json.Unmarshal(<-client.Send, &msg); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if msg.Payload["action"] != "denied" {
		t.Errorf("expected denied ack, got %+v", msg)
	}
}
