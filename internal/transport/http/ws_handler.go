package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/auth"
	"github.com/natuspati/jeopardy-api/internal/store"
	"github.com/natuspati/jeopardy-api/internal/ws"
)

// WSHandler upgrades lobby websocket sessions and relays messages between
// players of the same lobby.
type WSHandler struct {
	authService *auth.Service
	store       store.Store
	manager     *ws.ConnectionManager
	supersede   bool
	log         *zerolog.Logger
}

// NewWSHandler builds a new websocket session handler.
func NewWSHandler(
	authService *auth.Service,
	st store.Store,
	manager *ws.ConnectionManager,
	supersede bool,
	logger *zerolog.Logger,
) *WSHandler {
	return &WSHandler{
		authService: authService,
		store:       st,
		manager:     manager,
		supersede:   supersede,
		log:         logger,
	}
}

// Serve runs one lobby session: authenticate, resolve the player, admit the
// connection, announce the join, relay frames until the session ends, then
// announce the leave.
// GET /ws/lobby/:lobby_id?token=<jwt>
func (h *WSHandler) Serve(c *gin.Context) {
	ctx := c.Request.Context()

	lobbyID, err := strconv.ParseInt(c.Param("lobby_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid lobby id"})
		return
	}

	// Browsers cannot set headers on websocket dials, so the token may
	// arrive as a query parameter instead.
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}
	user, err := h.authService.Authenticate(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		return
	}

	player, err := h.store.GetPlayerByUserAndLobby(ctx, user.ID, lobbyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not a player in this lobby"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", user.ID).Int64("lobby_id", lobbyID).Msg("failed to resolve player")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if player.State == store.PlayerStateBanned {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "banned from this lobby"})
		return
	}

	room := h.manager.GetOrCreateRoom(lobbyID)
	conn, err := room.CreateConnection(player.ID, newWSTransport(c.Writer, c.Request), h.supersede)
	if err != nil {
		if errors.Is(err, ws.ErrConnectionExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "player already connected"})
			return
		}
		h.log.Error().Err(err).Int64("player_id", player.ID).Msg("failed to admit connection")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if !h.openSession(c, room, conn) {
		return
	}

	h.log.Info().Int64("player_id", player.ID).Int64("lobby_id", lobbyID).Msg("player connected")
	room.Send(ctx, ws.NewConnectMessage(player.ID), nil)

	err = room.Receive(ctx, conn, func(in *ws.Inbound) error {
		msg, err := ws.NewChatMessage(player.ID, in)
		if err != nil {
			return err
		}
		room.Send(ctx, msg, in.Receivers)
		return nil
	})
	if err != nil {
		h.log.Debug().Err(err).Int64("player_id", player.ID).Msg("session ended with error")
	}

	h.log.Info().Int64("player_id", player.ID).Int64("lobby_id", lobbyID).Msg("player disconnected")

	// A superseded session must not announce a leave while its replacement is
	// live. The request context dies with the hijacked connection, so the
	// announcement gets its own.
	if current, _ := room.GetConnection(player.ID, false); current == nil {
		room.Send(context.Background(), ws.NewDisconnectMessage(player.ID), nil)
	}
}

// openSession performs the websocket handshake for an admitted connection and
// reports whether the session may proceed. A connection superseded before the
// handshake fails the state check without ever touching the transport, so an
// explicit HTTP response is owed; an accept failure writes its own.
func (h *WSHandler) openSession(c *gin.Context, room *ws.Room, conn *ws.Connection) bool {
	err := conn.Open(c.Request.Context())
	if err == nil {
		return true
	}

	room.Drop(conn, websocket.StatusInternalError, "handshake failed")

	if errors.Is(err, ws.ErrInvalidState) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "connection superseded"})
		return false
	}

	h.log.Warn().Err(err).Int64("connection_id", conn.ID()).Msg("ws accept failed")
	return false
}
