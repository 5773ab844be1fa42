// Package vote applies ballot submissions and withdrawals as atomic state
// transitions across the poll and vote ledgers.
package vote

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"polling-system-backend/database"
	"polling-system-backend/errs"
	"polling-system-backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notifier receives post-commit events. Implementations must never block;
// delivery failures must not surface back into the mutation.
type Notifier interface {
	VoteUpdated(poll *models.Poll, voter *models.User)
}

// Processor validates ballots against poll rules and updates both ledgers
// in a single transaction. Counter updates use SQL expressions so concurrent
// mutations against the same poll serialize at the database instead of
// racing in application memory.
type Processor struct {
	db       *gorm.DB
	notifier Notifier
}

func NewProcessor(db *gorm.DB, notifier Notifier) *Processor {
	return &Processor{db: db, notifier: notifier}
}

// Submit records one ballot. Preconditions are checked in order and each
// maps to a distinct rejection; the ballot insert plus all counter updates
// either persist together or not at all.
func (p *Processor) Submit(ctx context.Context, pollID, voterID uint, selections []int) (*models.Vote, error) {
	db := p.db.WithContext(ctx)

	poll, err := database.FindActivePoll(db, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.AcceptsVotes(time.Now()) {
		return nil, errs.New(errs.Conflict, "this poll is closed and no longer accepting votes")
	}
	if len(selections) == 0 {
		return nil, errs.New(errs.InvalidInput, "at least one option must be selected")
	}
	seen := make(map[int]bool, len(selections))
	for _, pos := range selections {
		if seen[pos] {
			return nil, errs.New(errs.InvalidInput, "duplicate options are not allowed")
		}
		seen[pos] = true
		if pos < 0 || pos >= len(poll.Options) {
			return nil, errs.New(errs.InvalidInput, "invalid option selected")
		}
	}
	if len(selections) > 1 && !poll.AllowMultiple {
		return nil, errs.New(errs.Conflict, "this poll does not allow multiple selections")
	}
	if !poll.AllowMultiple {
		if _, err := database.FindUserVote(db, voterID, pollID); err == nil {
			return nil, errs.New(errs.Conflict, "you have already voted in this poll")
		} else if errs.KindOf(err) != errs.NotFound {
			return nil, err
		}
	}

	ballot := &models.Vote{
		UserID:          voterID,
		PollID:          pollID,
		SelectedOptions: datatypes.NewJSONSlice(selections),
		VotedAt:         time.Now(),
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ballot).Error; err != nil {
			// The check above races with concurrent submissions; the unique
			// (user_id, poll_id) index is the mechanism of record, so a
			// duplicate-key failure here is "already voted", not an
			// internal error.
			if isDuplicateKey(err) {
				return errs.New(errs.Conflict, "you have already voted in this poll")
			}
			return err
		}
		for _, pos := range selections {
			if err := tx.Model(&models.PollOption{}).
				Where("poll_id = ? AND position = ?", pollID, pos).
				UpdateColumn("votes", gorm.Expr("votes + ?", 1)).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Poll{}).
			Where("id = ?", pollID).
			UpdateColumn("total_votes", gorm.Expr("total_votes + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}

	p.notifyVoteUpdated(db, pollID, voterID)
	return ballot, nil
}

// Withdraw deletes the caller's ballot and reverses its counter effects.
// Counter decrements are floored at 0 as a safety net against drift.
func (p *Processor) Withdraw(ctx context.Context, pollID, voterID uint) error {
	db := p.db.WithContext(ctx)

	poll, err := database.FindActivePoll(db, pollID)
	if err != nil {
		return err
	}
	if !poll.AcceptsVotes(time.Now()) {
		return errs.New(errs.Conflict, "cannot withdraw a vote from a closed poll")
	}
	ballot, err := database.FindUserVote(db, voterID, pollID)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", ballot.ID).Delete(&models.Vote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost a race with another withdrawal of the same ballot.
			return errs.New(errs.NotFound, "you have not voted in this poll")
		}
		for _, pos := range ballot.SelectedOptions {
			if err := tx.Model(&models.PollOption{}).
				Where("poll_id = ? AND position = ?", pollID, pos).
				UpdateColumn("votes", gorm.Expr("CASE WHEN votes > 0 THEN votes - 1 ELSE 0 END")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Poll{}).
			Where("id = ?", pollID).
			UpdateColumn("total_votes", gorm.Expr("CASE WHEN total_votes > 0 THEN total_votes - 1 ELSE 0 END")).Error
	})
	if err != nil {
		return err
	}

	p.notifyVoteUpdated(db, pollID, voterID)
	return nil
}

// notifyVoteUpdated hands the committed state to the broadcast side. The
// mutation is already durable; failures here are logged and dropped.
func (p *Processor) notifyVoteUpdated(db *gorm.DB, pollID, voterID uint) {
	if p.notifier == nil {
		return
	}
	poll, err := database.FindActivePoll(db, pollID)
	if err != nil {
		log.Printf("vote: reload for broadcast failed [poll %d]: %v", pollID, err)
		return
	}
	var voter models.User
	if err := db.First(&voter, voterID).Error; err != nil {
		log.Printf("vote: voter lookup for broadcast failed [user %d]: %v", voterID, err)
		return
	}
	p.notifier.VoteUpdated(poll, &voter)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}
