// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/focusai/focus/pkg/core"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const (
	sessionTable  = "focus_sessions"
	turnTable     = "focus_turns"
	exchangeTable = "focus_exchanges"
)

// SessionRecord is the durable form of a roundtable session. Persona order
// and turn order are preserved exactly for audit and replay.
type SessionRecord struct {
	ID        string         `json:"id"`
	Task      string         `json:"task"`
	State     string         `json:"state"`
	Converged bool           `json:"converged"`
	Personas  []core.Persona `json:"personas"`
	Turns     []TurnRecord   `json:"turns"`
	Answer    string         `json:"answer,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TurnRecord is the durable form of a single agent turn.
type TurnRecord struct {
	ID         string    `json:"id"`
	Persona    string    `json:"persona"`
	Round      int       `json:"round"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	RespondsTo []string  `json:"responds_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExchangeRecord is one stored user/assistant exchange.
type ExchangeRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Context     string    `json:"context,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TranscriptStore persists session transcripts and conversation exchanges in
// SQLite. Turns carry an explicit sequence column so chronological replay is
// a plain ORDER BY.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore creates a SQLite-backed transcript store and ensures schema.
func NewTranscriptStore(db *sql.DB) (*TranscriptStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &TranscriptStore{db: db}, nil
}

// OpenTranscriptStore opens (or creates) the SQLite database at path.
func OpenTranscriptStore(path string) (*TranscriptStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	return NewTranscriptStore(db)
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			state TEXT NOT NULL,
			converged INTEGER NOT NULL,
			personas_json BLOB NOT NULL,
			answer TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`, sessionTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_state ON %s(state);`, sessionTable, sessionTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn_json BLOB NOT NULL,
			PRIMARY KEY(session_id, seq)
		);`, turnTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`, exchangeTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_session ON %s(session_id);`, exchangeTable, exchangeTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(created_at);`, exchangeTable, exchangeTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveSession persists a session record, replacing any previous version.
// Turns are written in slice order with their sequence position.
func (s *TranscriptStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("session id is required")
	}

	personas, err := json.Marshal(rec.Personas)
	if err != nil {
		return fmt.Errorf("failed to marshal personas: %w", err)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, task, state, converged, personas_json, answer, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				state=excluded.state,
				converged=excluded.converged,
				answer=excluded.answer,
				updated_at=excluded.updated_at`, sessionTable),
		rec.ID, rec.Task, rec.State, boolToInt(rec.Converged), personas, rec.Answer,
		rec.CreatedAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to save session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", turnTable), rec.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, turn := range rec.Turns {
		payload, err := json.Marshal(turn)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal turn %d: %w", i, err)
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (session_id, seq, turn_json) VALUES (?, ?, ?)", turnTable),
			rec.ID, i, payload); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LoadSession restores a session record with turns in chronological order.
func (s *TranscriptStore) LoadSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, task, state, converged, personas_json, answer, created_at, updated_at FROM %s WHERE id = ?", sessionTable), id)

	var rec SessionRecord
	var converged int
	var personas []byte
	var createdAt, updatedAt int64
	if err := row.Scan(&rec.ID, &rec.Task, &rec.State, &converged, &personas, &rec.Answer, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %s not found", id)
		}
		return nil, err
	}
	rec.Converged = converged != 0
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if err := json.Unmarshal(personas, &rec.Personas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal personas: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT turn_json FROM %s WHERE session_id = ? ORDER BY seq", turnTable), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var turn TurnRecord
		if err := json.Unmarshal(payload, &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		rec.Turns = append(rec.Turns, turn)
	}
	return &rec, rows.Err()
}

// StoreExchange records one user/assistant exchange.
func (s *TranscriptStore) StoreExchange(ctx context.Context, sessionID, userMsg, aiResponse, exchangeContext string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, session_id, user_message, ai_response, context, created_at) VALUES (?, ?, ?, ?, ?, ?)", exchangeTable),
		uuid.NewString(), sessionID, userMsg, aiResponse, exchangeContext, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store exchange: %w", err)
	}
	return nil
}

// SimilarExchanges returns past exchanges whose user message contains the
// query text, most recent first.
func (s *TranscriptStore) SimilarExchanges(ctx context.Context, query string, limit int) ([]ExchangeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, session_id, user_message, ai_response, context, created_at FROM %s WHERE user_message LIKE ? ORDER BY created_at DESC LIMIT ?", exchangeTable),
		"%"+query+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExchangeRecord
	for rows.Next() {
		var rec ExchangeRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserMessage, &rec.AIResponse, &rec.Context, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *TranscriptStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
