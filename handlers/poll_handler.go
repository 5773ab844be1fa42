package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"polling-system-backend/auth"
	"polling-system-backend/database"
	"polling-system-backend/errs"
	"polling-system-backend/models"
	"polling-system-backend/realtime"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// PollHandler serves the poll CRUD surface.
type PollHandler struct {
	db *gorm.DB
	rt *realtime.Service
}

func NewPollHandler(db *gorm.DB, rt *realtime.Service) *PollHandler {
	return &PollHandler{db: db, rt: rt}
}

type createPollInput struct {
	Title         string     `json:"title" binding:"required,max=200"`
	Description   string     `json:"description" binding:"max=2000"`
	Options       []string   `json:"options" binding:"required,min=2,dive,required,max=200"`
	ClosesAt      *time.Time `json:"closesAt,omitempty"`
	AllowMultiple bool       `json:"allowMultiple"`
	IsPublic      *bool      `json:"isPublic"`
}

func (h *PollHandler) Create(c *gin.Context) {
	ident := auth.CurrentIdentity(c)

	var input createPollInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, errs.New(errs.InvalidInput, err.Error()))
		return
	}
	if input.ClosesAt != nil && !input.ClosesAt.After(time.Now()) {
		abortWithError(c, errs.New(errs.InvalidInput, "closing time must be in the future"))
		return
	}

	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}
	poll := models.Poll{
		Title:         input.Title,
		Description:   input.Description,
		CreatedBy:     ident.UserID,
		IsActive:      true,
		ClosesAt:      input.ClosesAt,
		AllowMultiple: input.AllowMultiple,
		IsPublic:      isPublic,
	}
	for i, text := range input.Options {
		poll.Options = append(poll.Options, models.PollOption{Position: i, Text: text})
	}

	if err := h.db.Create(&poll).Error; err != nil {
		abortWithError(c, err)
		return
	}

	h.rt.NewPoll(&poll)
	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   gin.H{"poll": poll},
	})
}

func (h *PollHandler) List(c *gin.Context) {
	page, limit := pageParams(c)

	query := h.db.Model(&models.Poll{}).Scopes(database.ActivePolls)
	switch c.Query("status") {
	case "active":
		query = query.Where("is_closed = ? AND (closes_at IS NULL OR closes_at > ?)", false, time.Now())
	case "closed":
		query = query.Where("is_closed = ? OR closes_at <= ?", true, time.Now())
	}
	if userID := c.Query("userId"); userID != "" {
		query = query.Where("created_by = ?", userID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		abortWithError(c, err)
		return
	}

	var polls []models.Poll
	err := query.Preload("Options", database.OrderedOptions).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&polls).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"results":    len(polls),
		"data":       gin.H{"polls": polls},
		"pagination": paginate(page, limit, total),
	})
}

func (h *PollHandler) Get(c *gin.Context) {
	poll, err := h.loadPoll(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"poll": poll},
	})
}

type updatePollInput struct {
	Title         *string    `json:"title" binding:"omitempty,max=200"`
	Description   *string    `json:"description" binding:"omitempty,max=2000"`
	Options       []string   `json:"options" binding:"omitempty,min=2,dive,required,max=200"`
	ClosesAt      *time.Time `json:"closesAt"`
	AllowMultiple *bool      `json:"allowMultiple"`
	IsPublic      *bool      `json:"isPublic"`
}

// Update mutates a poll's definition. Only allowed while the poll has no
// recorded ballots; close/delete are the only mutations permitted after
// voting starts.
func (h *PollHandler) Update(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	poll, err := h.loadPoll(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !auth.CanManagePoll(ident, poll) {
		abortWithError(c, errs.New(errs.Forbidden, "not authorized to update this poll"))
		return
	}
	if poll.TotalVotes > 0 {
		abortWithError(c, errs.New(errs.Conflict, "cannot update a poll that has votes"))
		return
	}

	var input updatePollInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, errs.New(errs.InvalidInput, err.Error()))
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if input.Title != nil {
			poll.Title = *input.Title
		}
		if input.Description != nil {
			poll.Description = *input.Description
		}
		if input.ClosesAt != nil {
			poll.ClosesAt = input.ClosesAt
		}
		if input.AllowMultiple != nil {
			poll.AllowMultiple = *input.AllowMultiple
		}
		if input.IsPublic != nil {
			poll.IsPublic = *input.IsPublic
		}
		if err := tx.Omit("Options").Save(poll).Error; err != nil {
			return err
		}
		if input.Options != nil {
			// No ballots exist yet, so the option set can be replaced
			// wholesale.
			if err := tx.Where("poll_id = ?", poll.ID).Delete(&models.PollOption{}).Error; err != nil {
				return err
			}
			options := make([]models.PollOption, len(input.Options))
			for i, text := range input.Options {
				options[i] = models.PollOption{PollID: poll.ID, Position: i, Text: text}
			}
			return tx.Create(&options).Error
		}
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	updated, err := database.FindActivePoll(h.db, poll.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"poll": updated},
	})
}

// Close marks a poll closed and broadcasts the final projection. Always
// permitted to the owner or an admin, regardless of recorded ballots.
func (h *PollHandler) Close(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	poll, err := h.loadPoll(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !auth.CanManagePoll(ident, poll) {
		abortWithError(c, errs.New(errs.Forbidden, "not authorized to close this poll"))
		return
	}
	if poll.IsClosed {
		abortWithError(c, errs.New(errs.Conflict, "poll is already closed"))
		return
	}

	if err := h.db.Model(poll).UpdateColumn("is_closed", true).Error; err != nil {
		abortWithError(c, err)
		return
	}
	poll.IsClosed = true

	h.rt.PollClosed(poll)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "poll closed successfully",
		"data":    gin.H{"poll": poll},
	})
}

// Delete soft-deletes a poll; the record is never physically removed.
func (h *PollHandler) Delete(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	poll, err := h.loadPoll(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !auth.CanManagePoll(ident, poll) {
		abortWithError(c, errs.New(errs.Forbidden, "not authorized to delete this poll"))
		return
	}

	if err := h.db.Model(poll).UpdateColumn("is_active", false).Error; err != nil {
		abortWithError(c, err)
		return
	}

	h.rt.PollDeleted(poll.ID, poll.Title, ident.Username)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "poll deleted successfully",
	})
}

func (h *PollHandler) Mine(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	page, limit := pageParams(c)

	query := h.db.Model(&models.Poll{}).
		Scopes(database.ActivePolls).
		Where("created_by = ?", ident.UserID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		abortWithError(c, err)
		return
	}
	var polls []models.Poll
	err := query.Preload("Options", database.OrderedOptions).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&polls).Error
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"results":    len(polls),
		"data":       gin.H{"polls": polls},
		"pagination": paginate(page, limit, total),
	})
}

// Export dumps a poll's definition, results and per-voter ballots as CSV
// or JSON. Restricted to the owner or an admin since ballots identify the
// voters.
func (h *PollHandler) Export(c *gin.Context) {
	ident := auth.CurrentIdentity(c)
	poll, err := h.loadPoll(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !auth.CanManagePoll(ident, poll) {
		abortWithError(c, errs.New(errs.Forbidden, "not authorized to export this poll"))
		return
	}

	var ballots []models.Vote
	if err := h.db.Where("poll_id = ?", poll.ID).Order("voted_at ASC").Find(&ballots).Error; err != nil {
		abortWithError(c, err)
		return
	}

	if c.DefaultQuery("format", "json") == "csv" {
		h.exportCSV(c, poll)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"poll":    poll,
			"results": realtime.Project(poll),
			"votes":   ballots,
		},
	})
}

func (h *PollHandler) exportCSV(c *gin.Context, poll *models.Poll) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=poll-%d-results.csv", poll.ID))

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"option", "votes", "percentage"})
	for _, res := range realtime.Project(poll).Options {
		_ = w.Write([]string{
			res.Text,
			strconv.FormatInt(res.Votes, 10),
			strconv.Itoa(res.Percentage),
		})
	}
	w.Flush()
}

func (h *PollHandler) loadPoll(c *gin.Context) (*models.Poll, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, errs.New(errs.InvalidInput, "invalid poll ID")
	}
	return database.FindActivePoll(h.db, uint(id))
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}
