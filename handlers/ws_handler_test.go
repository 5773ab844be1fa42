package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"polling-system-backend/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(realtime.Envelope{Type: eventType, Data: payload}))
}

// readEvent reads frames until one of the wanted type arrives, skipping
// unrelated broadcasts.
func readEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var env realtime.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type != eventType {
			continue
		}
		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		return data
	}
}

func TestWSRejectsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSJoinPollReceivesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	owner := env.registerUser(t, "owner", "user")
	watcher := env.registerUser(t, "watcher", "user")
	pollID := env.createPoll(t, owner, nil)

	conn := dialWS(t, srv, watcher)
	sendEvent(t, conn, realtime.EventJoinPoll, gin.H{"pollId": pollID})

	data := readEvent(t, conn, realtime.EventPollData)
	assert.Equal(t, float64(pollID), data["pollId"])
	assert.Equal(t, "favorite language", data["title"])
	results := data["results"].(map[string]interface{})
	assert.Equal(t, float64(0), results["totalVotes"])
}

func TestWSVoteFansOutToWatchers(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	owner := env.registerUser(t, "owner", "user")
	voter := env.registerUser(t, "voter", "user")
	watcher := env.registerUser(t, "watcher", "user")
	pollID := env.createPoll(t, owner, nil)

	watcherConn := dialWS(t, srv, watcher)
	sendEvent(t, watcherConn, realtime.EventJoinPoll, gin.H{"pollId": pollID})
	readEvent(t, watcherConn, realtime.EventPollData)

	voterConn := dialWS(t, srv, voter)
	sendEvent(t, voterConn, realtime.EventSubmitVote, gin.H{
		"pollId":          pollID,
		"selectedOptions": []int{1},
	})
	readEvent(t, voterConn, realtime.EventVoteSuccess)

	update := readEvent(t, watcherConn, realtime.EventVoteUpdate)
	assert.Equal(t, float64(pollID), update["pollId"])
	assert.Equal(t, "voter", update["votedBy"])
	results := update["results"].(map[string]interface{})
	assert.Equal(t, float64(1), results["totalVotes"])
}

func TestWSVoteErrorKeepsConnection(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	owner := env.registerUser(t, "owner", "user")
	voter := env.registerUser(t, "voter", "user")
	pollID := env.createPoll(t, owner, nil)

	conn := dialWS(t, srv, voter)
	sendEvent(t, conn, realtime.EventSubmitVote, gin.H{
		"pollId":          pollID,
		"selectedOptions": []int{5},
	})
	failure := readEvent(t, conn, realtime.EventVoteError)
	assert.Equal(t, "invalid_input", failure["code"])

	// The connection stays usable after a rejected vote.
	sendEvent(t, conn, realtime.EventSubmitVote, gin.H{
		"pollId":          pollID,
		"selectedOptions": []int{1},
	})
	readEvent(t, conn, realtime.EventVoteSuccess)
}

func TestWSForbiddenJoinKeepsConnection(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	owner := env.registerUser(t, "owner", "user")
	stranger := env.registerUser(t, "stranger", "user")
	private := env.createPoll(t, owner, gin.H{"isPublic": false})
	public := env.createPoll(t, owner, nil)

	conn := dialWS(t, srv, stranger)
	sendEvent(t, conn, realtime.EventJoinPoll, gin.H{"pollId": private})
	failure := readEvent(t, conn, realtime.EventError)
	assert.Equal(t, "forbidden", failure["code"])

	sendEvent(t, conn, realtime.EventJoinPoll, gin.H{"pollId": public})
	readEvent(t, conn, realtime.EventPollData)
}

func TestWSNewPollAnnouncement(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	creator := env.registerUser(t, "creator", "user")
	subscriber := env.registerUser(t, "subscriber", "user")

	conn := dialWS(t, srv, subscriber)
	sendEvent(t, conn, realtime.EventSubscribeNewPolls, gin.H{})
	// Ping round-trip guarantees the subscription is registered before the
	// poll is created.
	sendEvent(t, conn, realtime.EventPing, gin.H{})
	readEvent(t, conn, realtime.EventPong)

	pollID := env.createPoll(t, creator, gin.H{"title": "breaking news"})

	announcement := readEvent(t, conn, realtime.EventNewPoll)
	assert.Equal(t, float64(pollID), announcement["pollId"])
	assert.Equal(t, "breaking news", announcement["title"])
}

func TestWSPollClosedBroadcast(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	owner := env.registerUser(t, "owner", "user")
	watcher := env.registerUser(t, "watcher", "user")
	pollID := env.createPoll(t, owner, nil)

	conn := dialWS(t, srv, watcher)
	sendEvent(t, conn, realtime.EventJoinPoll, gin.H{"pollId": pollID})
	readEvent(t, conn, realtime.EventPollData)

	rec, _ := env.request(t, http.MethodPost, fmt.Sprintf("/api/polls/%d/close", pollID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	closedEvent := readEvent(t, conn, realtime.EventPollClosed)
	assert.Equal(t, float64(pollID), closedEvent["pollId"])
	assert.NotNil(t, closedEvent["finalResults"])
}
