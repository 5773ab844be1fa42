package handlers

import (
	"net/http"
	"time"

	"polling-system-backend/database"
	"polling-system-backend/models"
	"polling-system-backend/realtime"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatsHandler serves health and statistics endpoints.
type StatsHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
	rt  *realtime.Service
}

func NewStatsHandler(db *gorm.DB, hub *realtime.Hub, rt *realtime.Service) *StatsHandler {
	return &StatsHandler{db: db, hub: hub, rt: rt}
}

func (h *StatsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}

// System reports aggregate counts plus the hub's live connection figures.
func (h *StatsHandler) System(c *gin.Context) {
	var totalPolls, activePolls, totalVotes, totalUsers int64

	if err := h.db.Model(&models.Poll{}).Scopes(database.ActivePolls).Count(&totalPolls).Error; err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(&models.Poll{}).
		Scopes(database.ActivePolls).
		Where("is_closed = ? AND (closes_at IS NULL OR closes_at > ?)", false, time.Now()).
		Count(&activePolls).Error; err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(&models.Vote{}).Count(&totalVotes).Error; err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(&models.User{}).Where("is_active = ?", true).Count(&totalUsers).Error; err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"totalPolls":       totalPolls,
			"activePolls":      activePolls,
			"totalVotes":       totalVotes,
			"totalUsers":       totalUsers,
			"connectedClients": h.hub.ConnectedClients(),
			"activePollRooms":  h.hub.ActivePollRooms(),
		},
	})
}

type topPoll struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	TotalVotes int64  `json:"totalVotes"`
}

// Admin reports daily activity figures and pushes the same snapshot to the
// admin room so dashboards stay current without polling.
func (h *StatsHandler) Admin(c *gin.Context) {
	since := time.Now().Truncate(24 * time.Hour)

	var pollsToday, votesToday, newUsersToday int64
	if err := h.db.Model(&models.Poll{}).Where("created_at >= ?", since).Count(&pollsToday).Error; err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(&models.Vote{}).Where("voted_at >= ?", since).Count(&votesToday).Error; err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.db.Model(&models.User{}).Where("created_at >= ?", since).Count(&newUsersToday).Error; err != nil {
		abortWithError(c, err)
		return
	}

	var top []topPoll
	err := h.db.Model(&models.Poll{}).
		Scopes(database.ActivePolls).
		Select("id, title, total_votes").
		Order("total_votes DESC").
		Limit(5).
		Scan(&top).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	stats := gin.H{
		"pollsToday":    pollsToday,
		"votesToday":    votesToday,
		"newUsersToday": newUsersToday,
		"topPolls":      top,
	}

	h.rt.AdminStats(stats)
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   stats,
	})
}
