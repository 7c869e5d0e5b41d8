package sqlite

// Schema is the full database schema. The migrate command applies it; tests
// apply it through NewWithSetup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_active     BOOLEAN NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	modified_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lobbies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS players (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL,
	score    INTEGER,
	state    TEXT NOT NULL DEFAULT 'waiting',
	user_id  INTEGER NOT NULL,
	lobby_id INTEGER NOT NULL,
	UNIQUE (user_id, lobby_id),
	FOREIGN KEY (user_id) REFERENCES users(id),
	FOREIGN KEY (lobby_id) REFERENCES lobbies(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE INDEX IF NOT EXISTS idx_lobbies_created ON lobbies(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_players_lobby ON players(lobby_id);
`
