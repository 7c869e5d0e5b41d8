package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/natuspati/jeopardy-api/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens a SQLite store at dbPath.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup opens a SQLite store and runs a setup function before first
// use. Tests use it to apply the schema against ":memory:".
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the schema.
func (s *SQLiteStore) Migrate() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new active user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_active)
		VALUES (?, ?, 1)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", username, store.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_active, created_at, modified_at
		FROM users
		WHERE ` + where

	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// DeactivateUser marks a user inactive.
func (s *SQLiteStore) DeactivateUser(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET is_active = 0, modified_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	return requireAffected(result, "user")
}

// ==== LobbyStore implementation ====

// CreateLobby creates a new lobby.
func (s *SQLiteStore) CreateLobby(ctx context.Context, name string) (*store.Lobby, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO lobbies (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert lobby: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetLobbyByID(ctx, id)
}

// GetLobbyByID retrieves a lobby by id.
func (s *SQLiteStore) GetLobbyByID(ctx context.Context, id int64) (*store.Lobby, error) {
	query := `
		SELECT id, name, created_at
		FROM lobbies
		WHERE id = ?
	`
	var lobby store.Lobby
	err := s.db.QueryRowContext(ctx, query, id).Scan(&lobby.ID, &lobby.Name, &lobby.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lobby %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query lobby: %w", err)
	}

	return &lobby, nil
}

// ListLobbies lists lobbies filtered and ordered by creation time.
func (s *SQLiteStore) ListLobbies(ctx context.Context, params store.ListLobbiesParams) ([]*store.Lobby, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, name, created_at FROM lobbies`)

	var conds []string
	var args []any
	if params.Start != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, *params.Start)
	}
	if params.End != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, *params.End)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if params.Order == store.OrderAsc {
		sb.WriteString(" ORDER BY created_at ASC, id ASC")
	} else {
		sb.WriteString(" ORDER BY created_at DESC, id DESC")
	}

	sb.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query lobbies: %w", err)
	}
	defer rows.Close()

	var lobbies []*store.Lobby
	for rows.Next() {
		var lobby store.Lobby
		if err := rows.Scan(&lobby.ID, &lobby.Name, &lobby.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lobby: %w", err)
		}
		lobbies = append(lobbies, &lobby)
	}

	return lobbies, rows.Err()
}

// CountLobbies returns the total number of lobbies.
func (s *SQLiteStore) CountLobbies(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lobbies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lobbies: %w", err)
	}
	return count, nil
}

// DeleteLobby removes a lobby; its players go with it via cascade.
func (s *SQLiteStore) DeleteLobby(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM lobbies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete lobby: %w", err)
	}
	return requireAffected(result, "lobby")
}

// ==== PlayerStore implementation ====

// CreatePlayer adds a user to a lobby as a player.
func (s *SQLiteStore) CreatePlayer(ctx context.Context, name string, state store.PlayerState, userID, lobbyID int64) (*store.Player, error) {
	query := `
		INSERT INTO players (name, state, user_id, lobby_id)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, state, userID, lobbyID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("player for user %d in lobby %d: %w", userID, lobbyID, store.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("insert player: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetPlayerByID(ctx, id)
}

// GetPlayerByID retrieves a player by id.
func (s *SQLiteStore) GetPlayerByID(ctx context.Context, id int64) (*store.Player, error) {
	return s.getPlayer(ctx, "id = ?", id)
}

// GetPlayerByUserAndLobby retrieves the player a user holds in a lobby.
func (s *SQLiteStore) GetPlayerByUserAndLobby(ctx context.Context, userID, lobbyID int64) (*store.Player, error) {
	return s.getPlayer(ctx, "user_id = ? AND lobby_id = ?", userID, lobbyID)
}

func (s *SQLiteStore) getPlayer(ctx context.Context, where string, args ...any) (*store.Player, error) {
	query := `
		SELECT id, name, score, state, user_id, lobby_id
		FROM players
		WHERE ` + where

	var player store.Player
	var score sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&player.ID,
		&player.Name,
		&score,
		&player.State,
		&player.UserID,
		&player.LobbyID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query player: %w", err)
	}
	if score.Valid {
		player.Score = &score.Int64
	}

	return &player, nil
}

// ListLobbyPlayers lists all players of a lobby.
func (s *SQLiteStore) ListLobbyPlayers(ctx context.Context, lobbyID int64) ([]*store.Player, error) {
	query := `
		SELECT id, name, score, state, user_id, lobby_id
		FROM players
		WHERE lobby_id = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	var players []*store.Player
	for rows.Next() {
		var player store.Player
		var score sql.NullInt64
		if err := rows.Scan(&player.ID, &player.Name, &score, &player.State, &player.UserID, &player.LobbyID); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if score.Valid {
			player.Score = &score.Int64
		}
		players = append(players, &player)
	}

	return players, rows.Err()
}

// UpdatePlayerState sets a player's state.
func (s *SQLiteStore) UpdatePlayerState(ctx context.Context, id int64, state store.PlayerState) (*store.Player, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE players SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return nil, fmt.Errorf("update player state: %w", err)
	}
	if err := requireAffected(result, "player"); err != nil {
		return nil, err
	}
	return s.GetPlayerByID(ctx, id)
}

// DeletePlayer removes a player from its lobby.
func (s *SQLiteStore) DeletePlayer(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return requireAffected(result, "player")
}

func requireAffected(result sql.Result, entity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", entity, store.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
