package realtime

import (
	"math"

	"polling-system-backend/models"
)

// OptionResult is one option's slice of a result projection.
type OptionResult struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	Votes      int64  `json:"votes"`
	Percentage int    `json:"percentage"`
}

// Projection is the computed read-only view of a poll's current tallies.
type Projection struct {
	Options    []OptionResult `json:"options"`
	TotalVotes int64          `json:"totalVotes"`
}

// Project computes the result projection for a poll. It is a pure function
// of the poll's current state: percentages are rounded to the nearest
// integer and defined as 0 when the poll has no votes.
func Project(poll *models.Poll) Projection {
	results := make([]OptionResult, len(poll.Options))
	for i, opt := range poll.Options {
		pct := 0
		if poll.TotalVotes > 0 {
			pct = int(math.Round(float64(opt.Votes) / float64(poll.TotalVotes) * 100))
		}
		results[i] = OptionResult{
			Index:      opt.Position,
			Text:       opt.Text,
			Votes:      opt.Votes,
			Percentage: pct,
		}
	}
	return Projection{Options: results, TotalVotes: poll.TotalVotes}
}
