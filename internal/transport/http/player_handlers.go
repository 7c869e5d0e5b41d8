package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/store"
)

// PlayerHandlers provides HTTP handlers for player operations.
type PlayerHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewPlayerHandlers creates a new player handlers instance.
func NewPlayerHandlers(st store.Store, logger *zerolog.Logger) *PlayerHandlers {
	return &PlayerHandlers{
		store: st,
		log:   logger,
	}
}

// JoinLobbyRequest represents the join request body. Name defaults to the
// caller's username.
type JoinLobbyRequest struct {
	Name  string            `json:"name"`
	State store.PlayerState `json:"state"`
}

// UpdatePlayerStateRequest represents the state update request body.
type UpdatePlayerStateRequest struct {
	State store.PlayerState `json:"state" binding:"required"`
}

// PlayerResponse represents a player in API responses.
type PlayerResponse struct {
	ID      int64             `json:"id"`
	Name    string            `json:"name"`
	Score   *int64            `json:"score"`
	State   store.PlayerState `json:"state"`
	UserID  int64             `json:"user_id"`
	LobbyID int64             `json:"lobby_id"`
}

func playerResponse(player *store.Player) PlayerResponse {
	return PlayerResponse{
		ID:      player.ID,
		Name:    player.Name,
		Score:   player.Score,
		State:   player.State,
		UserID:  player.UserID,
		LobbyID: player.LobbyID,
	}
}

// JoinLobby adds the caller to a lobby as a player. The first player of an
// empty lobby becomes the lead, later joiners wait.
// POST /api/v1/lobbies/:lobby_id/players
func (h *PlayerHandlers) JoinLobby(c *gin.Context) {
	lobbyID, err := strconv.ParseInt(c.Param("lobby_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lobby id"})
		return
	}

	caller, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	// An empty body is fine, everything defaults.
	var req JoinLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" {
		req.Name = caller.Username
	}
	if req.State != "" && !req.State.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid player state"})
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetLobbyByID(ctx, lobbyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "lobby not found"})
			return
		}
		h.log.Error().Err(err).Int64("lobby_id", lobbyID).Msg("failed to get lobby")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	state := req.State
	if state == "" {
		existing, err := h.store.ListLobbyPlayers(ctx, lobbyID)
		if err != nil {
			h.log.Error().Err(err).Int64("lobby_id", lobbyID).Msg("failed to list lobby players")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		if len(existing) == 0 {
			state = store.PlayerStateLead
		} else {
			state = store.PlayerStateWaiting
		}
	}

	player, err := h.store.CreatePlayer(ctx, req.Name, state, caller.ID, lobbyID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "already a player in this lobby"})
			return
		}
		h.log.Error().Err(err).Int64("lobby_id", lobbyID).Msg("failed to create player")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("player_id", player.ID).Int64("lobby_id", lobbyID).Msg("player joined lobby")
	c.JSON(http.StatusCreated, playerResponse(player))
}

// ListPlayers lists all players of a lobby.
// GET /api/v1/lobbies/:lobby_id/players
func (h *PlayerHandlers) ListPlayers(c *gin.Context) {
	lobbyID, err := strconv.ParseInt(c.Param("lobby_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lobby id"})
		return
	}

	players, err := h.store.ListLobbyPlayers(c.Request.Context(), lobbyID)
	if err != nil {
		h.log.Error().Err(err).Int64("lobby_id", lobbyID).Msg("failed to list lobby players")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]PlayerResponse, 0, len(players))
	for _, player := range players {
		response = append(response, playerResponse(player))
	}

	c.JSON(http.StatusOK, response)
}

// UpdatePlayerState sets a player's state. Only the lobby lead or the
// player's own user may change it.
// PATCH /api/v1/players/:player_id
func (h *PlayerHandlers) UpdatePlayerState(c *gin.Context) {
	playerID, err := strconv.ParseInt(c.Param("player_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid player id"})
		return
	}

	var req UpdatePlayerStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !req.State.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid player state"})
		return
	}

	caller, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	player, err := h.store.GetPlayerByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "player not found"})
			return
		}
		h.log.Error().Err(err).Int64("player_id", playerID).Msg("failed to get player")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if !h.mayManage(ctx, caller.ID, player) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed to manage this player"})
		return
	}

	updated, err := h.store.UpdatePlayerState(ctx, playerID, req.State)
	if err != nil {
		h.log.Error().Err(err).Int64("player_id", playerID).Msg("failed to update player state")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, playerResponse(updated))
}

// LeaveLobby removes a player from its lobby. Only the lobby lead or the
// player's own user may remove it.
// DELETE /api/v1/players/:player_id
func (h *PlayerHandlers) LeaveLobby(c *gin.Context) {
	playerID, err := strconv.ParseInt(c.Param("player_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid player id"})
		return
	}

	caller, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	player, err := h.store.GetPlayerByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "player not found"})
			return
		}
		h.log.Error().Err(err).Int64("player_id", playerID).Msg("failed to get player")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if !h.mayManage(ctx, caller.ID, player) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not allowed to manage this player"})
		return
	}

	if err := h.store.DeletePlayer(ctx, playerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "player not found"})
			return
		}
		h.log.Error().Err(err).Int64("player_id", playerID).Msg("failed to delete player")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("player_id", playerID).Int64("lobby_id", player.LobbyID).Msg("player left lobby")
	c.Status(http.StatusNoContent)
}

// mayManage reports whether the calling user owns the player or leads the
// player's lobby.
func (h *PlayerHandlers) mayManage(ctx context.Context, userID int64, player *store.Player) bool {
	if player.UserID == userID {
		return true
	}
	callerPlayer, err := h.store.GetPlayerByUserAndLobby(ctx, userID, player.LobbyID)
	if err != nil {
		return false
	}
	return callerPlayer.State == store.PlayerStateLead
}
