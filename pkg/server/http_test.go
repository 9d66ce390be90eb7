package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, client *http.Client, method, url, playerID string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	if playerID != "" {
		req.Header.Set(playerIDHeader, playerID)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHTTPGameFlow(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	// Alice creates the game.
	resp, raw := doJSON(t, srv.Client(), "POST", srv.URL+"/v1/games", "alice",
		createGameRequest{Username: "alice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var created GameView
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.GameID)
	gameURL := srv.URL + "/v1/games/" + created.GameID

	// Bob joins and the hand is dealt.
	resp, raw = doJSON(t, srv.Client(), "POST", gameURL+"/join", "bob",
		joinGameRequest{Username: "bob"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, srv.Client(), "POST", gameURL+"/deal", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	// Bob bets, alice calls: flop.
	resp, raw = doJSON(t, srv.Client(), "POST", gameURL+"/actions", "bob",
		actionRequest{Action: "bet", Amount: 20})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = doJSON(t, srv.Client(), "POST", gameURL+"/actions", "alice",
		actionRequest{Action: "call"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var view GameView
	require.NoError(t, json.Unmarshal(raw, &view))
	require.Equal(t, "flop", view.Stage)
	require.Equal(t, int64(40), view.Pot)
	require.Len(t, view.CommunalCards, 3)
	require.Len(t, view.Hand, 2, "caller sees their own hole cards")
}

func TestHTTPHoleCardsStayPrivate(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	gameID := dealtGame(t, s)

	resp, raw := doJSON(t, srv.Client(), "GET", srv.URL+"/v1/games/"+gameID, "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view map[string]any
	require.NoError(t, json.Unmarshal(raw, &view))
	players := view["players"].([]any)
	require.Len(t, players, 2)
	for _, p := range players {
		_, leaked := p.(map[string]any)["hand"]
		require.False(t, leaked, "player list must not carry hole cards")
	}

	// A spectator with no seat gets no hand at all.
	resp, raw = doJSON(t, srv.Client(), "GET", srv.URL+"/v1/games/"+gameID, "carol", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var spectator GameView
	require.NoError(t, json.Unmarshal(raw, &spectator))
	require.Empty(t, spectator.Hand)
}

func TestHTTPErrorMapping(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	gameID := dealtGame(t, s)
	gameURL := srv.URL + "/v1/games/" + gameID

	// Unknown game.
	resp, _ := doJSON(t, srv.Client(), "GET", srv.URL+"/v1/games/nope", "alice", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing identity.
	resp, _ = doJSON(t, srv.Client(), "POST", srv.URL+"/v1/games", "",
		createGameRequest{Username: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Out of turn.
	resp, _ = doJSON(t, srv.Client(), "POST", gameURL+"/actions", "alice",
		actionRequest{Action: "bet", Amount: 20})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown action verb.
	resp, _ = doJSON(t, srv.Client(), "POST", gameURL+"/actions", "bob",
		actionRequest{Action: "shove"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Dealing mid-hand.
	resp, _ = doJSON(t, srv.Client(), "POST", gameURL+"/deal", "alice", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHTTPTick(t *testing.T) {
	s, clock := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	gameID := dealtGame(t, s)

	resp, raw := doJSON(t, srv.Client(), "POST", srv.URL+"/v1/games/"+gameID+"/tick", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tick tickResponse
	require.NoError(t, json.Unmarshal(raw, &tick))
	require.False(t, tick.Expired)

	clock.Advance(31 * time.Second)
	resp, raw = doJSON(t, srv.Client(), "POST", srv.URL+"/v1/games/"+gameID+"/tick", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &tick))
	require.True(t, tick.Expired)
	require.Equal(t, 0, tick.Game.CurrentPlayerIndex)
}

func TestHTTPWatchStreamsEvents(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	g, err := s.CreateGame(context.Background(), "alice", "alice")
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/games/" + g.ID + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().WatcherCount(g.ID) == 1 },
		time.Second, 5*time.Millisecond)

	_, err = s.JoinGame(context.Background(), g.ID, "bob", "bob")
	require.NoError(t, err)

	// The create-time event may still be in flight; read until the join's
	// state update arrives.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var event GameEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		require.Equal(t, g.ID, event.GameID)
		if event.Type == GameEventTypeStateUpdate {
			break
		}
	}
}
