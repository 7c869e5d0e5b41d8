package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an insert violates a uniqueness
	// constraint, e.g. a second player for the same user and lobby.
	ErrAlreadyExists = errors.New("already exists")
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Lobby is a named group of players sharing one broadcast channel.
type Lobby struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// PlayerState tracks a player's standing inside a lobby.
type PlayerState string

const (
	PlayerStateLead     PlayerState = "lead"
	PlayerStateWaiting  PlayerState = "waiting"
	PlayerStatePlaying  PlayerState = "playing"
	PlayerStateInactive PlayerState = "inactive"
	PlayerStateBanned   PlayerState = "banned"
)

// Valid reports whether the state is a known variant.
func (s PlayerState) Valid() bool {
	switch s {
	case PlayerStateLead, PlayerStateWaiting, PlayerStatePlaying, PlayerStateInactive, PlayerStateBanned:
		return true
	default:
		return false
	}
}

// Player is a user's membership in one lobby. The (UserID, LobbyID) pair is
// unique: a user holds at most one player per lobby.
type Player struct {
	ID      int64
	Name    string
	Score   *int64
	State   PlayerState
	UserID  int64
	LobbyID int64
}

// Order directs list queries by creation time.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ListLobbiesParams filters and pages the lobby listing.
type ListLobbiesParams struct {
	Limit  int
	Offset int
	Start  *time.Time
	End    *time.Time
	Order  Order
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new active user with a hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by id.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// DeactivateUser marks a user inactive; inactive users cannot
	// authenticate.
	DeactivateUser(ctx context.Context, id int64) error
}

// LobbyStore handles lobby persistence.
type LobbyStore interface {
	// CreateLobby creates a new lobby.
	CreateLobby(ctx context.Context, name string) (*Lobby, error)

	// GetLobbyByID retrieves a lobby by id.
	GetLobbyByID(ctx context.Context, id int64) (*Lobby, error)

	// ListLobbies lists lobbies filtered and ordered by creation time.
	ListLobbies(ctx context.Context, params ListLobbiesParams) ([]*Lobby, error)

	// CountLobbies returns the total number of lobbies.
	CountLobbies(ctx context.Context) (int64, error)

	// DeleteLobby removes a lobby and its players.
	DeleteLobby(ctx context.Context, id int64) error
}

// PlayerStore handles player persistence.
type PlayerStore interface {
	// CreatePlayer adds a user to a lobby as a player.
	CreatePlayer(ctx context.Context, name string, state PlayerState, userID, lobbyID int64) (*Player, error)

	// GetPlayerByID retrieves a player by id.
	GetPlayerByID(ctx context.Context, id int64) (*Player, error)

	// GetPlayerByUserAndLobby retrieves the player a user holds in a lobby.
	GetPlayerByUserAndLobby(ctx context.Context, userID, lobbyID int64) (*Player, error)

	// ListLobbyPlayers lists all players of a lobby.
	ListLobbyPlayers(ctx context.Context, lobbyID int64) ([]*Player, error)

	// UpdatePlayerState sets a player's state.
	UpdatePlayerState(ctx context.Context, id int64, state PlayerState) (*Player, error)

	// DeletePlayer removes a player from its lobby.
	DeletePlayer(ctx context.Context, id int64) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	LobbyStore
	PlayerStore

	// Close closes the underlying database connection.
	Close() error
}
