package handlers

import (
	"log"
	"net/http"
	"strconv"

	"polling-system-backend/auth"
	"polling-system-backend/cache"
	"polling-system-backend/database"
	"polling-system-backend/errs"
	"polling-system-backend/models"
	"polling-system-backend/realtime"
	"polling-system-backend/vote"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// VoteHandler serves ballot submission, withdrawal and result queries over
// HTTP. The live channel in package realtime goes through the same
// processor, so both surfaces share one set of rules.
type VoteHandler struct {
	db      *gorm.DB
	votes   *vote.Processor
	results *cache.ProjectionCache
}

func NewVoteHandler(db *gorm.DB, votes *vote.Processor, results *cache.ProjectionCache) *VoteHandler {
	return &VoteHandler{db: db, votes: votes, results: results}
}

type submitVoteInput struct {
	SelectedOptions []int `json:"selectedOptions" binding:"required"`
}

func (h *VoteHandler) Submit(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	var input submitVoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, errs.New(errs.InvalidInput, err.Error()))
		return
	}

	ballot, err := h.votes.Submit(c.Request.Context(), pollID, ident.UserID, input.SelectedOptions)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": "vote recorded successfully",
		"data":    gin.H{"vote": ballot},
	})
}

func (h *VoteHandler) Withdraw(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	if err := h.votes.Withdraw(c.Request.Context(), pollID, ident.UserID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "vote withdrawn successfully",
	})
}

// Results serves the current projection for a poll, read through the redis
// cache. The caller's own ballot rides along so clients can highlight it.
func (h *VoteHandler) Results(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	poll, err := database.FindActivePoll(h.db, pollID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !auth.CanViewResults(ident, poll) {
		abortWithError(c, errs.New(errs.Forbidden, "results for this poll are private"))
		return
	}

	ctx := c.Request.Context()
	var projection realtime.Projection
	if err := h.results.GetResults(ctx, pollID, &projection); err != nil {
		projection = realtime.Project(poll)
		if err := h.results.SetResults(ctx, pollID, projection); err != nil {
			log.Printf("handlers: caching results failed [poll %d]: %v", pollID, err)
		}
	}

	data := gin.H{
		"pollId":   poll.ID,
		"title":    poll.Title,
		"isClosed": poll.IsClosed,
		"results":  projection,
	}
	if ballot, err := database.FindUserVote(h.db, ident.UserID, pollID); err == nil {
		data["userVote"] = ballot.SelectedOptions
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   data,
	})
}

// CheckVote reports whether the caller has a ballot in the poll.
func (h *VoteHandler) CheckVote(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	pollID, ok := pollIDParam(c)
	if !ok {
		return
	}

	ballot, err := database.FindUserVote(h.db, ident.UserID, pollID)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			c.JSON(http.StatusOK, gin.H{
				"status": "success",
				"data":   gin.H{"hasVoted": false},
			})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"hasVoted":        true,
			"selectedOptions": ballot.SelectedOptions,
			"votedAt":         ballot.VotedAt,
		},
	})
}

// Mine lists the caller's voting history, newest first.
func (h *VoteHandler) Mine(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	page, limit := pageParams(c)

	query := h.db.Model(&models.Vote{}).Where("user_id = ?", ident.UserID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		abortWithError(c, err)
		return
	}
	var ballots []models.Vote
	err := query.Order("voted_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&ballots).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"results":    len(ballots),
		"data":       gin.H{"votes": ballots},
		"pagination": paginate(page, limit, total),
	})
}

func pollIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		abortWithError(c, errs.New(errs.InvalidInput, "invalid poll ID"))
		return 0, false
	}
	return uint(id), true
}
