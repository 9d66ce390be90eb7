package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cardroom/cardroom/pkg/poker"
)

// playerIDHeader carries the caller's identity. Authentication proper is the
// deployment's business (a fronting proxy); the room only needs a stable ID.
const playerIDHeader = "X-Player-ID"

// GameView is the personal snapshot returned to API callers: the public
// state plus the caller's own hole cards and the timer.
type GameView struct {
	StateUpdate
	HandNum      int               `json:"handNum"`
	CurrentBet   int64             `json:"currentBet"`
	PlayerBets   []int64           `json:"playerBets"`
	Dealer       int               `json:"dealer"`
	Hand         []poker.Card      `json:"hand,omitempty"`
	Timer        poker.TurnTimer   `json:"timer"`
	LastResult   *poker.Settlement `json:"lastResult,omitempty"`
	MaxPlayers   int               `json:"maxPlayers"`
	WatcherCount int               `json:"watcherCount"`
}

// viewFor builds the snapshot the given player may see. Other players' hole
// cards are never exposed; winners' hands become visible through the
// settlement payloads instead.
func (s *Server) viewFor(g *poker.Game, playerID string) GameView {
	v := GameView{
		StateUpdate:  newStateUpdate(g),
		HandNum:      g.HandNum,
		CurrentBet:   g.CurrentBet,
		PlayerBets:   g.PlayerBets(),
		Dealer:       g.Dealer,
		Timer:        g.Timer,
		LastResult:   g.LastResult,
		MaxPlayers:   g.MaxPlayers,
		WatcherCount: s.hub.WatcherCount(g.ID),
	}
	if p := g.PlayerByID(playerID); p != nil {
		v.Hand = append([]poker.Card(nil), p.Hand...)
	}
	return v
}

type createGameRequest struct {
	Username string `json:"username"`
}

type joinGameRequest struct {
	Username string `json:"username"`
}

type actionRequest struct {
	Action string `json:"action"`
	Amount int64  `json:"amount"`
}

type tickResponse struct {
	Expired bool     `json:"expired"`
	Game    GameView `json:"game"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the HTTP API for the room.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/games", s.handleCreateGame)
	mux.HandleFunc("GET /v1/games", s.handleListGames)
	mux.HandleFunc("GET /v1/games/{id}", s.handleGetGame)
	mux.HandleFunc("DELETE /v1/games/{id}", s.handleDeleteGame)
	mux.HandleFunc("POST /v1/games/{id}/join", s.handleJoinGame)
	mux.HandleFunc("POST /v1/games/{id}/leave", s.handleLeaveGame)
	mux.HandleFunc("POST /v1/games/{id}/deal", s.handleDealHand)
	mux.HandleFunc("POST /v1/games/{id}/restart", s.handleRestartGame)
	mux.HandleFunc("POST /v1/games/{id}/actions", s.handlePlaceAction)
	mux.HandleFunc("POST /v1/games/{id}/tick", s.handleTick)
	mux.HandleFunc("GET /v1/games/{id}/ws", s.handleWatchGame)
	mux.HandleFunc("GET /v1/players/me/game", s.handleCurrentGame)

	return mux
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)
	if playerID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing "+playerIDHeader+" header"))
		return
	}

	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" {
		req.Username = playerID
	}

	g, err := s.CreateGame(r.Context(), playerID, req.Username)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.viewFor(g, playerID))
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.ListGames(r.Context())
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	out := make([]StateUpdate, 0, len(games))
	for _, g := range games {
		out = append(out, newStateUpdate(g))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.GetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, r.Header.Get(playerIDHeader)))
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.DeleteGame(r.Context(), r.PathValue("id")); err != nil {
		s.writeGameError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)
	if playerID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing "+playerIDHeader+" header"))
		return
	}

	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Username == "" {
		req.Username = playerID
	}

	g, err := s.JoinGame(r.Context(), r.PathValue("id"), playerID, req.Username)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, playerID))
}

func (s *Server) handleLeaveGame(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)
	g, err := s.LeaveGame(r.Context(), r.PathValue("id"), playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, playerID))
}

func (s *Server) handleDealHand(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)
	g, err := s.DealHand(r.Context(), r.PathValue("id"), playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, playerID))
}

func (s *Server) handleRestartGame(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)
	g, err := s.RestartGame(r.Context(), r.PathValue("id"), playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, playerID))
}

func (s *Server) handlePlaceAction(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := poker.ParseActionKind(req.Action)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	g, err := s.PlaceAction(r.Context(), r.PathValue("id"), playerID, poker.Action{
		Kind:   kind,
		Amount: req.Amount,
	})
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, playerID))
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	g, expired, err := s.Tick(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tickResponse{
		Expired: expired,
		Game:    s.viewFor(g, r.Header.Get(playerIDHeader)),
	})
}

func (s *Server) handleWatchGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	if _, err := s.GetGame(r.Context(), gameID); err != nil {
		s.writeGameError(w, err)
		return
	}
	s.hub.ServeWS(w, r, gameID)
}

func (s *Server) handleCurrentGame(w http.ResponseWriter, r *http.Request) {
	playerID := r.Header.Get(playerIDHeader)
	if playerID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing "+playerIDHeader+" header"))
		return
	}

	g, err := s.GetUserCurrentGame(r.Context(), playerID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.viewFor(g, playerID))
}

// writeGameError maps engine and store errors onto HTTP statuses.
func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrGameNotFound), errors.Is(err, poker.ErrPlayerNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, poker.ErrNotYourTurn),
		errors.Is(err, poker.ErrGameInProgress),
		errors.Is(err, poker.ErrNoHandInProgress),
		errors.Is(err, poker.ErrNotEnoughPlayers),
		errors.Is(err, poker.ErrGameFull),
		errors.Is(err, poker.ErrAlreadySeated):
		s.writeError(w, http.StatusConflict, err)
	case errors.Is(err, poker.ErrInvalidAction):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ErrLockTimeout):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
	} else {
		s.log.Debugf("Request rejected: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}
