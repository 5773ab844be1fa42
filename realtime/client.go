package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"polling-system-backend/auth"
	"polling-system-backend/database"
	"polling-system-backend/errs"
	"polling-system-backend/vote"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// Inbound events per connection: 10/s sustained, bursts of 20.
	inboundRate  = 10
	inboundBurst = 20
)

// Client is one live, authenticated connection. Its inbound events are
// handled serially on the read pump, so responses to a single connection
// are delivered in submission order.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	identity auth.Identity
	db       *gorm.DB
	votes    *vote.Processor
	limiter  *rate.Limiter

	// closed is owned by the hub and guarded by its lock.
	closed bool
}

// NewClient wraps an upgraded, already-authenticated connection. The caller
// must Start it to register with the hub and begin the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, identity auth.Identity, db *gorm.DB, votes *vote.Processor) *Client {
	return &Client{
		id:       uuid.NewString(),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		identity: identity,
		db:       db,
		votes:    votes,
		limiter:  rate.NewLimiter(inboundRate, inboundBurst),
	}
}

// Start registers the client and launches its pumps.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error [conn %s]: %v", c.id, err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.sendError(errs.New(errs.InvalidInput, "too many messages, slow down"))
			continue
		}
		c.dispatch(message)
	}
}

// dispatch handles one inbound event to completion before the read pump
// picks up the next one from this connection.
func (c *Client) dispatch(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.sendError(errs.New(errs.InvalidInput, "malformed message"))
		return
	}

	switch env.Type {
	case EventJoinPoll:
		c.handleJoinPoll(env.Data)
	case EventLeavePoll:
		c.handleLeavePoll(env.Data)
	case EventSubmitVote:
		c.handleSubmitVote(env.Data)
	case EventSubscribeNewPolls:
		c.hub.SubscribeNewPolls(c)
	case EventSubscribeAdmin:
		// Silently ignored for non-admins inside the hub.
		c.hub.SubscribeAdmin(c)
	case EventPing:
		c.enqueue(marshalEvent(EventPong, map[string]string{
			"time": time.Now().Format(time.RFC3339),
		}))
	default:
		c.sendError(errs.Newf(errs.InvalidInput, "unknown event type %q", env.Type))
	}
}

// handleJoinPoll authorizes the watch, joins the room and immediately sends
// a full projection so late joiners see correct state without waiting for
// the next vote.
func (c *Client) handleJoinPoll(data json.RawMessage) {
	var req joinPollRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PollID == 0 {
		c.sendError(errs.New(errs.InvalidInput, "joinPoll requires a pollId"))
		return
	}
	poll, err := database.FindActivePoll(c.db, req.PollID)
	if err != nil {
		c.sendError(err)
		return
	}
	if !auth.CanViewResults(&c.identity, poll) {
		// Authorization failure notifies the caller but keeps the
		// connection up.
		c.sendError(errs.New(errs.Forbidden, "not authorized to watch this poll"))
		return
	}
	c.hub.JoinPoll(c, req.PollID)
	c.enqueue(marshalEvent(EventPollData, pollDataPayload{
		PollID:   poll.ID,
		Title:    poll.Title,
		Results:  Project(poll),
		IsClosed: poll.IsClosed,
	}))
}

func (c *Client) handleLeavePoll(data json.RawMessage) {
	var req joinPollRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PollID == 0 {
		c.sendError(errs.New(errs.InvalidInput, "leavePoll requires a pollId"))
		return
	}
	c.hub.LeavePoll(c, req.PollID)
}

func (c *Client) handleSubmitVote(data json.RawMessage) {
	var req submitVoteRequest
	if err := json.Unmarshal(data, &req); err != nil || req.PollID == 0 {
		c.sendError(errs.New(errs.InvalidInput, "submitVote requires a pollId and selectedOptions"))
		return
	}
	ballot, err := c.votes.Submit(context.Background(), req.PollID, c.identity.UserID, req.SelectedOptions)
	if err != nil {
		c.enqueue(marshalEvent(EventVoteError, errorPayload{
			Code:    errs.Code(err),
			Message: errs.Message(err),
		}))
		return
	}
	c.enqueue(marshalEvent(EventVoteSuccess, map[string]interface{}{
		"pollId":          req.PollID,
		"selectedOptions": ballot.SelectedOptions,
		"votedAt":         ballot.VotedAt,
	}))
}

func (c *Client) sendError(err error) {
	c.enqueue(marshalEvent(EventError, errorPayload{
		Code:    errs.Code(err),
		Message: errs.Message(err),
	}))
}

// enqueue queues a frame for this connection without blocking the caller.
func (c *Client) enqueue(frame []byte) {
	c.hub.deliver([]*Client{c}, frame)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
