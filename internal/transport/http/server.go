package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/natuspati/jeopardy-api/internal/auth"
	"github.com/natuspati/jeopardy-api/internal/cache"
	"github.com/natuspati/jeopardy-api/internal/config"
	"github.com/natuspati/jeopardy-api/internal/store"
	"github.com/natuspati/jeopardy-api/internal/ws"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server with all API and websocket routes.
func NewServer(
	cfg config.Config,
	logger *zerolog.Logger,
	authService *auth.Service,
	st store.Store,
	entityCache *cache.Cache,
	manager *ws.ConnectionManager,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	users := NewUserHandlers(authService, st, logger)
	lobbies := NewLobbyHandlers(st, entityCache, cfg.PageSize, logger)
	players := NewPlayerHandlers(st, logger)

	api := router.Group("/api/v1")
	api.POST("/users", users.Register)
	api.POST("/token", users.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	authed.GET("/users/:user_id", users.GetUser)
	authed.DELETE("/users/:user_id", users.DeactivateUser)

	authed.GET("/lobbies", lobbies.ListLobbies)
	authed.POST("/lobbies", lobbies.CreateLobby)
	authed.GET("/lobbies/:lobby_id", lobbies.GetLobby)
	authed.DELETE("/lobbies/:lobby_id", lobbies.DeleteLobby)

	authed.POST("/lobbies/:lobby_id/players", players.JoinLobby)
	authed.GET("/lobbies/:lobby_id/players", players.ListPlayers)
	authed.PATCH("/players/:player_id", players.UpdatePlayerState)
	authed.DELETE("/players/:player_id", players.LeaveLobby)

	authed.GET("/status", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, manager.Stats())
	})

	wsHandler := NewWSHandler(authService, st, manager, cfg.SupersedeConnections, logger)
	router.GET("/ws/lobby/:lobby_id", wsHandler.Serve)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
