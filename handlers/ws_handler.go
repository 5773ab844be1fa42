package handlers

import (
	"log"
	"net/http"
	"strings"

	"polling-system-backend/auth"
	"polling-system-backend/errs"
	"polling-system-backend/realtime"
	"polling-system-backend/vote"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Cross-origin browser clients are expected; auth happens via token.
		return true
	},
}

// WSHandler upgrades authenticated requests onto the live channel.
type WSHandler struct {
	db     *gorm.DB
	tokens *auth.Service
	hub    *realtime.Hub
	votes  *vote.Processor
}

func NewWSHandler(db *gorm.DB, tokens *auth.Service, hub *realtime.Hub, votes *vote.Processor) *WSHandler {
	return &WSHandler{db: db, tokens: tokens, hub: hub, votes: votes}
}

// Serve authenticates the request, then upgrades it and hands the connection
// to the hub. Authentication happens before the upgrade so failures come back
// as ordinary HTTP errors.
func (h *WSHandler) Serve(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if raw == "" {
		abortWithError(c, errs.New(errs.Unauthorized, "authentication token required"))
		return
	}

	ident, err := h.tokens.Authenticate(h.db, raw)
	if err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws: upgrade failed [user %d]: %v", ident.UserID, err)
		return
	}

	client := realtime.NewClient(h.hub, conn, *ident, h.db, h.votes)
	client.Start()
	log.Printf("ws: connection established [user %d, %s]", ident.UserID, ident.Username)
}
