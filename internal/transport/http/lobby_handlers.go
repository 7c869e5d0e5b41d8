package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/cache"
	"github.com/natuspati/jeopardy-api/internal/store"
)

// LobbyHandlers provides HTTP handlers for lobby operations.
type LobbyHandlers struct {
	store    store.Store
	cache    *cache.Cache
	pageSize int
	log      *zerolog.Logger
}

// NewLobbyHandlers creates a new lobby handlers instance.
func NewLobbyHandlers(st store.Store, entityCache *cache.Cache, pageSize int, logger *zerolog.Logger) *LobbyHandlers {
	return &LobbyHandlers{
		store:    st,
		cache:    entityCache,
		pageSize: pageSize,
		log:      logger,
	}
}

// CreateLobbyRequest represents the lobby creation request body.
type CreateLobbyRequest struct {
	Name string `json:"name" binding:"required"`
}

// LobbyResponse represents a lobby in API responses.
type LobbyResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// LobbyDetailResponse is a lobby with its players.
type LobbyDetailResponse struct {
	LobbyResponse
	Players []PlayerResponse `json:"players"`
}

func lobbyResponse(lobby *store.Lobby) LobbyResponse {
	return LobbyResponse{
		ID:        lobby.ID,
		Name:      lobby.Name,
		CreatedAt: lobby.CreatedAt,
	}
}

// ListLobbies lists lobbies with pagination and creation-time filters.
// GET /api/v1/lobbies
func (h *LobbyHandlers) ListLobbies(c *gin.Context) {
	params, err := parsePageParams(c, h.pageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	lobbies, err := h.store.ListLobbies(ctx, params.ListParams())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list lobbies")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	total, err := h.store.CountLobbies(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to count lobbies")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	items := make([]LobbyResponse, 0, len(lobbies))
	for _, lobby := range lobbies {
		items = append(items, lobbyResponse(lobby))
	}

	c.JSON(http.StatusOK, pagedResponse(c, params, total, items))
}

// CreateLobby creates a new lobby.
// POST /api/v1/lobbies
func (h *LobbyHandlers) CreateLobby(c *gin.Context) {
	var req CreateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	lobby, err := h.store.CreateLobby(c.Request.Context(), req.Name)
	if err != nil {
		h.log.Error().Err(err).Str("name", req.Name).Msg("failed to create lobby")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("lobby_id", lobby.ID).Str("name", lobby.Name).Msg("lobby created")
	c.JSON(http.StatusCreated, lobbyResponse(lobby))
}

// GetLobby retrieves a lobby with its players. The lobby record itself is
// served cache-aside; the player list is always fresh.
// GET /api/v1/lobbies/:lobby_id
func (h *LobbyHandlers) GetLobby(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("lobby_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lobby id"})
		return
	}

	ctx := c.Request.Context()

	var lobby store.Lobby
	key := h.cache.LobbyKey(id)
	hit, err := h.cache.Get(ctx, key, &lobby)
	if err != nil {
		h.log.Warn().Err(err).Int64("lobby_id", id).Msg("lobby cache read failed")
	}
	if !hit {
		fetched, err := h.store.GetLobbyByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, ErrorResponse{Error: "lobby not found"})
				return
			}
			h.log.Error().Err(err).Int64("lobby_id", id).Msg("failed to get lobby")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		lobby = *fetched
		if err := h.cache.Set(ctx, key, lobby); err != nil {
			h.log.Warn().Err(err).Int64("lobby_id", id).Msg("lobby cache write failed")
		}
	}

	players, err := h.store.ListLobbyPlayers(ctx, id)
	if err != nil {
		h.log.Error().Err(err).Int64("lobby_id", id).Msg("failed to list lobby players")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	detail := LobbyDetailResponse{
		LobbyResponse: lobbyResponse(&lobby),
		Players:       make([]PlayerResponse, 0, len(players)),
	}
	for _, player := range players {
		detail.Players = append(detail.Players, playerResponse(player))
	}

	c.JSON(http.StatusOK, detail)
}

// DeleteLobby removes a lobby and its players, and invalidates the cache.
// DELETE /api/v1/lobbies/:lobby_id
func (h *LobbyHandlers) DeleteLobby(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("lobby_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lobby id"})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.DeleteLobby(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "lobby not found"})
			return
		}
		h.log.Error().Err(err).Int64("lobby_id", id).Msg("failed to delete lobby")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if err := h.cache.Delete(ctx, h.cache.LobbyKey(id)); err != nil {
		h.log.Warn().Err(err).Int64("lobby_id", id).Msg("lobby cache invalidation failed")
	}

	h.log.Info().Int64("lobby_id", id).Msg("lobby deleted")
	c.Status(http.StatusNoContent)
}
