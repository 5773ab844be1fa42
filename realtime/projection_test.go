package realtime

import (
	"testing"

	"polling-system-backend/models"

	"github.com/stretchr/testify/assert"
)

func pollWithVotes(total int64, votes ...int64) *models.Poll {
	poll := &models.Poll{TotalVotes: total}
	for i, v := range votes {
		poll.Options = append(poll.Options, models.PollOption{
			Position: i,
			Text:     "opt",
			Votes:    v,
		})
	}
	return poll
}

func TestProjectEmptyPoll(t *testing.T) {
	proj := Project(pollWithVotes(0, 0, 0))

	assert.Equal(t, int64(0), proj.TotalVotes)
	for _, res := range proj.Options {
		assert.Equal(t, 0, res.Percentage, "percentage is defined as 0 without votes")
	}
}

func TestProjectRoundsPercentages(t *testing.T) {
	proj := Project(pollWithVotes(3, 1, 2))

	assert.Equal(t, 33, proj.Options[0].Percentage)
	assert.Equal(t, 67, proj.Options[1].Percentage)
}

func TestProjectCarriesPositions(t *testing.T) {
	poll := pollWithVotes(4, 1, 3)
	proj := Project(poll)

	assert.Equal(t, 0, proj.Options[0].Index)
	assert.Equal(t, 1, proj.Options[1].Index)
	assert.Equal(t, int64(3), proj.Options[1].Votes)
	assert.Equal(t, 75, proj.Options[1].Percentage)
}
