// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dualnback/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so stored timestamps sort and compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for players and game sessions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; the HTTP boundary may save concurrently.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			n_level INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS game_sessions (
			id INTEGER PRIMARY KEY,
			uid TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL REFERENCES users(id),
			n_level INTEGER NOT NULL,
			rounds INTEGER NOT NULL,
			score INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			matches_pos INTEGER NOT NULL,
			matches_audio INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_game_sessions_ended_at ON game_sessions(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_game_sessions_user ON game_sessions(user_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a session for the named player, creating the player on
// first use. The player's level is raised when the session used a higher one.
func (s *Store) InsertSession(ctx context.Context, user string, rec model.SavedSession) (model.SavedSession, error) {
	if strings.TrimSpace(user) == "" {
		return model.SavedSession{}, errors.New("user is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SavedSession{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var userID int64
	var userLevel int
	err = tx.QueryRowContext(ctx, `SELECT id, n_level FROM users WHERE name = ?`, user).Scan(&userID, &userLevel)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var res sql.Result
		res, err = tx.ExecContext(ctx,
			`INSERT INTO users (name, n_level, created_at) VALUES (?, ?, ?)`,
			user, rec.NLevel, time.Now().UTC().Format(timeLayout))
		if err != nil {
			return model.SavedSession{}, err
		}
		userID, err = res.LastInsertId()
		if err != nil {
			return model.SavedSession{}, err
		}
		userLevel = rec.NLevel
	case err != nil:
		return model.SavedSession{}, err
	}

	rec.UID = uuid.NewString()
	rec.User = user
	res, err := tx.ExecContext(ctx,
		`INSERT INTO game_sessions (uid, user_id, n_level, rounds, score, accuracy, matches_pos, matches_audio, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UID,
		userID,
		rec.NLevel,
		rec.Rounds,
		rec.Score,
		rec.Accuracy,
		rec.Matches.Pos,
		rec.Matches.Audio,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.EndedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return model.SavedSession{}, err
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return model.SavedSession{}, err
	}

	if rec.NLevel > userLevel {
		if _, err = tx.ExecContext(ctx, `UPDATE users SET n_level = ? WHERE id = ?`, rec.NLevel, userID); err != nil {
			return model.SavedSession{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return model.SavedSession{}, err
	}
	return rec, nil
}

// ListSessions returns session aggregates filtered by stats config, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.User != "" {
		clauses = append(clauses, "u.name = ?")
		args = append(args, cfg.User)
	}
	if cfg.NLevel > 0 {
		clauses = append(clauses, "g.n_level = ?")
		args = append(args, cfg.NLevel)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "g.ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT g.id, g.ended_at, g.n_level, g.rounds, g.score, g.accuracy, g.matches_pos, g.matches_audio
		FROM game_sessions g
		JOIN users u ON u.id = g.user_id
		WHERE %s
		ORDER BY g.ended_at ASC, g.id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var endedAt string
		if err := rows.Scan(&agg.SessionID, &endedAt, &agg.NLevel, &agg.Rounds, &agg.Score, &agg.Accuracy, &agg.Matches.Pos, &agg.Matches.Audio); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return sessions, nil
}

// ListUsers returns every player with their best level and session count.
func (s *Store) ListUsers(ctx context.Context) ([]model.UserAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT u.name, u.n_level, COUNT(g.id), MAX(g.ended_at)
		FROM users u
		LEFT JOIN game_sessions g ON g.user_id = u.id
		GROUP BY u.id
		ORDER BY u.name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var users []model.UserAggregate
	for rows.Next() {
		var agg model.UserAggregate
		var lastPlay sql.NullString
		if err := rows.Scan(&agg.Name, &agg.NLevel, &agg.Sessions, &lastPlay); err != nil {
			return nil, err
		}
		if lastPlay.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, lastPlay.String)
			if err != nil {
				return nil, err
			}
			agg.LastPlay = &parsed
		}
		users = append(users, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
