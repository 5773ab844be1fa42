package realtime

import (
	"context"
	"log"
	"time"

	"polling-system-backend/models"
)

// ResultsCache is the slice of the projection cache the broadcast side
// needs: dropping stale entries when a poll's tallies change.
type ResultsCache interface {
	Invalidate(ctx context.Context, pollID uint) error
}

// Service computes result projections and fans them out to the relevant
// rooms. It never blocks or fails the mutation that triggered it: delivery
// to departed connections is dropped silently and logged by the hub.
type Service struct {
	hub   *Hub
	cache ResultsCache
}

// NewService builds the broadcast service. cache may be nil when redis is
// not configured.
func NewService(hub *Hub, cache ResultsCache) *Service {
	return &Service{hub: hub, cache: cache}
}

// VoteUpdated pushes a fresh projection to the poll's room and a distinct
// notification to the owner's personal room, unless the voter is the owner.
func (s *Service) VoteUpdated(poll *models.Poll, voter *models.User) {
	s.dropCached(poll.ID)

	s.hub.BroadcastToPoll(poll.ID, marshalEvent(EventVoteUpdate, voteUpdatePayload{
		PollID:    poll.ID,
		Results:   Project(poll),
		VotedBy:   voter.Username,
		Timestamp: time.Now(),
	}))

	if poll.CreatedBy != voter.ID {
		s.hub.SendToUser(poll.CreatedBy, marshalEvent(EventNewVoteOnYourPoll, map[string]interface{}{
			"pollId":     poll.ID,
			"title":      poll.Title,
			"votedBy":    voter.Username,
			"totalVotes": poll.TotalVotes,
		}))
	}
}

// PollClosed sends the final projection to the poll's room and notifies the
// owner's personal room.
func (s *Service) PollClosed(poll *models.Poll) {
	s.dropCached(poll.ID)

	s.hub.BroadcastToPoll(poll.ID, marshalEvent(EventPollClosed, map[string]interface{}{
		"pollId":       poll.ID,
		"title":        poll.Title,
		"finalResults": Project(poll),
		"closedAt":     time.Now(),
	}))
	s.hub.SendToUser(poll.CreatedBy, marshalEvent(EventYourPollClosed, map[string]interface{}{
		"pollId":     poll.ID,
		"title":      poll.Title,
		"totalVotes": poll.TotalVotes,
	}))
}

// PollDeleted tells current watchers the poll is gone.
func (s *Service) PollDeleted(pollID uint, title string, deletedBy string) {
	s.dropCached(pollID)

	s.hub.BroadcastToPoll(pollID, marshalEvent(EventPollDeleted, map[string]interface{}{
		"pollId":    pollID,
		"title":     title,
		"deletedBy": deletedBy,
	}))
}

// NewPoll announces a poll to the new-poll subscribers and to admins.
func (s *Service) NewPoll(poll *models.Poll) {
	frame := marshalEvent(EventNewPoll, map[string]interface{}{
		"pollId":       poll.ID,
		"title":        poll.Title,
		"description":  poll.Description,
		"createdBy":    poll.CreatedBy,
		"totalOptions": len(poll.Options),
		"createdAt":    poll.CreatedAt,
	})
	s.hub.BroadcastToNewPollSubscribers(frame)
	s.hub.BroadcastToAdmins(frame)
}

// AdminStats pushes a statistics snapshot to the admin room.
func (s *Service) AdminStats(stats interface{}) {
	s.hub.BroadcastToAdmins(marshalEvent(EventAdminStatsUpdate, map[string]interface{}{
		"stats":     stats,
		"timestamp": time.Now(),
	}))
}

// SystemNotice broadcasts a system-wide notification to every connection.
func (s *Service) SystemNotice(title, message, level string) {
	s.hub.BroadcastToAll(marshalEvent(EventSystemNotice, map[string]interface{}{
		"title":   title,
		"message": message,
		"type":    level,
	}))
}

func (s *Service) dropCached(pollID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.Background(), pollID); err != nil {
		log.Printf("realtime: projection cache invalidation failed [poll %d]: %v", pollID, err)
	}
}
