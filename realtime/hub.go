package realtime

import (
	"log"
	"sync"
)

// Hub is the connection registry: it owns every live connection and groups
// them into rooms (one per watched poll, one per user, an admin room and a
// new-poll room). It is constructed explicitly in main and injected into
// whatever needs to broadcast; there is no package-level instance.
//
// Room maps are plain identity-to-set indexes with no ordering guarantee
// among members.
type Hub struct {
	mu sync.RWMutex

	clients     map[*Client]bool
	pollRooms   map[uint]map[*Client]bool
	userRooms   map[uint]map[*Client]bool
	adminRoom   map[*Client]bool
	newPollRoom map[*Client]bool

	register   chan *Client
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		pollRooms:   make(map[uint]map[*Client]bool),
		userRooms:   make(map[uint]map[*Client]bool),
		adminRoom:   make(map[*Client]bool),
		newPollRoom: make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
	}
}

// Run processes connection registration until Shutdown. Room joins and
// leaves are handled synchronously on the calling connection's goroutine;
// only the connection lifecycle flows through channels.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Shutdown stops the hub and drops every connection.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	// Every authenticated connection is implicitly in its user's personal
	// room so owner notifications reach all of that user's sessions.
	if _, ok := h.userRooms[client.identity.UserID]; !ok {
		h.userRooms[client.identity.UserID] = make(map[*Client]bool)
	}
	h.userRooms[client.identity.UserID][client] = true
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("realtime: client connected [conn %s, user %d, total %d]",
		client.id, client.identity.UserID, total)
}

// remove releases every room membership exactly once. Removing a client
// that already departed some rooms, or was never registered, is a no-op.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return
	}
	client.closed = true

	delete(h.clients, client)
	for pollID, room := range h.pollRooms {
		delete(room, client)
		if len(room) == 0 {
			delete(h.pollRooms, pollID)
		}
	}
	if room, ok := h.userRooms[client.identity.UserID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.userRooms, client.identity.UserID)
		}
	}
	delete(h.adminRoom, client)
	delete(h.newPollRoom, client)
	close(client.send)

	log.Printf("realtime: client disconnected [conn %s, remaining %d]", client.id, len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.remove(c)
	}
}

// JoinPoll adds the connection to a poll's room. Authorization happens at
// the event layer; the registry only tracks membership.
func (h *Hub) JoinPoll(client *Client, pollID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return
	}
	if _, ok := h.pollRooms[pollID]; !ok {
		h.pollRooms[pollID] = make(map[*Client]bool)
	}
	h.pollRooms[pollID][client] = true
}

// LeavePoll is idempotent; removing a non-member is a no-op.
func (h *Hub) LeavePoll(client *Client, pollID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.pollRooms[pollID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.pollRooms, pollID)
	}
}

// SubscribeAdmin adds admin connections to the admin room. Non-admin calls
// are silently ignored so the channel never leaks role information.
func (h *Hub) SubscribeAdmin(client *Client) {
	if !client.identity.IsAdmin() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !client.closed {
		h.adminRoom[client] = true
	}
}

// SubscribeNewPolls adds the connection to the new-poll announcement room.
func (h *Hub) SubscribeNewPolls(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !client.closed {
		h.newPollRoom[client] = true
	}
}

// BroadcastToPoll delivers a frame to every current member of a poll's
// room. Delivery is at-most-once per currently-connected member.
func (h *Hub) BroadcastToPoll(pollID uint, frame []byte) {
	h.mu.RLock()
	members := snapshot(h.pollRooms[pollID])
	h.mu.RUnlock()
	h.deliver(members, frame)
}

// SendToUser delivers a frame to every connection in a user's personal room.
func (h *Hub) SendToUser(userID uint, frame []byte) {
	h.mu.RLock()
	members := snapshot(h.userRooms[userID])
	h.mu.RUnlock()
	h.deliver(members, frame)
}

func (h *Hub) BroadcastToAdmins(frame []byte) {
	h.mu.RLock()
	members := snapshot(h.adminRoom)
	h.mu.RUnlock()
	h.deliver(members, frame)
}

func (h *Hub) BroadcastToNewPollSubscribers(frame []byte) {
	h.mu.RLock()
	members := snapshot(h.newPollRoom)
	h.mu.RUnlock()
	h.deliver(members, frame)
}

func (h *Hub) BroadcastToAll(frame []byte) {
	h.mu.RLock()
	members := snapshot(h.clients)
	h.mu.RUnlock()
	h.deliver(members, frame)
}

// deliver pushes a frame to each member without blocking. A member whose
// send buffer is full is dropped from the registry; it will re-sync with a
// fresh projection if it reconnects and rejoins.
func (h *Hub) deliver(members []*Client, frame []byte) {
	if frame == nil {
		return
	}
	var stale []*Client
	// The closed flag and close(send) are both mutated under the write
	// lock, so checking and sending under the read lock cannot race a
	// channel close.
	h.mu.RLock()
	for _, client := range members {
		if client.closed {
			continue
		}
		select {
		case client.send <- frame:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()
	for _, client := range stale {
		log.Printf("realtime: dropping slow client [conn %s]", client.id)
		h.remove(client)
	}
}

// ConnectedClients reports the number of live connections.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ActivePollRooms reports how many polls currently have watchers.
func (h *Hub) ActivePollRooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pollRooms)
}

func snapshot(room map[*Client]bool) []*Client {
	members := make([]*Client, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	return members
}
