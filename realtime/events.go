package realtime

import (
	"encoding/json"
	"log"
	"time"
)

// Inbound event types accepted on a live connection.
const (
	EventJoinPoll          = "joinPoll"
	EventLeavePoll         = "leavePoll"
	EventSubmitVote        = "submitVote"
	EventSubscribeNewPolls = "subscribeToNewPolls"
	EventSubscribeAdmin    = "subscribeToAdmin"
	EventPing              = "ping"
)

// Outbound event types.
const (
	EventPollData          = "pollData"
	EventVoteUpdate        = "voteUpdate"
	EventVoteSuccess       = "voteSuccess"
	EventVoteError         = "voteError"
	EventNewPoll           = "newPoll"
	EventNewVoteOnYourPoll = "newVoteOnYourPoll"
	EventPollClosed        = "pollClosed"
	EventYourPollClosed    = "yourPollClosed"
	EventPollDeleted       = "pollDeleted"
	EventAdminStatsUpdate  = "adminStatsUpdate"
	EventSystemNotice      = "systemNotification"
	EventPong              = "pong"
	EventError             = "error"
)

// Envelope is the wire frame for every message on the live channel.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type joinPollRequest struct {
	PollID uint `json:"pollId"`
}

type submitVoteRequest struct {
	PollID          uint  `json:"pollId"`
	SelectedOptions []int `json:"selectedOptions"`
}

type pollDataPayload struct {
	PollID   uint       `json:"pollId"`
	Title    string     `json:"title"`
	Results  Projection `json:"results"`
	IsClosed bool       `json:"isClosed"`
}

type voteUpdatePayload struct {
	PollID    uint       `json:"pollId"`
	Results   Projection `json:"results"`
	VotedBy   string     `json:"votedBy"`
	Timestamp time.Time  `json:"timestamp"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// marshalEvent frames a payload into an envelope. Marshal failures are a
// programming error on our own payload types; log and drop.
func marshalEvent(eventType string, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("realtime: failed to marshal %s payload: %v", eventType, err)
		return nil
	}
	frame, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		log.Printf("realtime: failed to marshal %s envelope: %v", eventType, err)
		return nil
	}
	return frame
}
