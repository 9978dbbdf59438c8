package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps step records, source snapshots and session state in a sqlite file.
type SQLiteStore struct {
	DB *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite from returning SQLITE_BUSY under concurrent commands.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS step_records (
			session_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			response TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, step)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL,
			source TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, source)
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			step INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate store: %w", err)
		}
	}

	return &SQLiteStore{DB: db}, nil
}

func (s *SQLiteStore) SaveStep(sessionID string, rec StepRecord) error {
	query := `INSERT INTO step_records (session_id, step, prompt, response) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, step) DO UPDATE SET
			prompt = excluded.prompt,
			response = excluded.response,
			updated_at = CURRENT_TIMESTAMP`
	_, err := s.DB.Exec(query, sessionID, rec.Step, rec.Prompt, rec.Response)
	return err
}

func (s *SQLiteStore) History(sessionID string) (History, error) {
	query := `SELECT step, prompt, response FROM step_records WHERE session_id = ? ORDER BY step ASC`
	rows, err := s.DB.Query(query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make(History)
	for rows.Next() {
		var rec StepRecord
		if err := rows.Scan(&rec.Step, &rec.Prompt, &rec.Response); err != nil {
			return nil, err
		}
		history[rec.Step] = rec
	}
	return history, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(sessionID, source, data string) error {
	query := `INSERT INTO snapshots (session_id, source, data) VALUES (?, ?, ?)
		ON CONFLICT(session_id, source) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`
	_, err := s.DB.Exec(query, sessionID, source, data)
	return err
}

func (s *SQLiteStore) Snapshot(sessionID, source string) (string, bool, error) {
	var data string
	err := s.DB.QueryRow(`SELECT data FROM snapshots WHERE session_id = ? AND source = ?`, sessionID, source).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return data, true, nil
}

func (s *SQLiteStore) SetState(sessionID string, state SessionState) error {
	query := `INSERT INTO sessions (session_id, status, step) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			step = excluded.step,
			updated_at = CURRENT_TIMESTAMP`
	_, err := s.DB.Exec(query, sessionID, string(state.Status), state.Step)
	return err
}

func (s *SQLiteStore) State(sessionID string) (SessionState, error) {
	var status string
	var step int
	err := s.DB.QueryRow(`SELECT status, step FROM sessions WHERE session_id = ?`, sessionID).Scan(&status, &step)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionState{Status: StatusNotStarted}, nil
	}
	if err != nil {
		return SessionState{}, err
	}
	return SessionState{Status: Status(status), Step: step}, nil
}

func (s *SQLiteStore) Reset(sessionID string) error {
	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	for _, q := range []string{
		`DELETE FROM step_records WHERE session_id = ?`,
		`DELETE FROM snapshots WHERE session_id = ?`,
		`DELETE FROM sessions WHERE session_id = ?`,
	} {
		if _, err := tx.Exec(q, sessionID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
