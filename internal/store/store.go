package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/glebarez/go-sqlite"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/calder/pennyworth/internal/approval"
	"github.com/calder/pennyworth/internal/audit"
)

// Store is the sqlite persistence layer: conversation history,
// approval requests, and the audit trail share one database.
type Store struct {
	DB  *sql.DB
	Log *zap.Logger
}

func New(dbPath string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT,
			role TEXT,
			content TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS approvals (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			status TEXT,
			created_at DATETIME,
			payload TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			at DATETIME,
			payload TEXT
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &Store{DB: db, Log: log}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// AddMessage appends one turn of conversation history.
func (s *Store) AddMessage(chatID, role, content string) error {
	_, err := s.DB.Exec(`INSERT INTO messages (chat_id, role, content) VALUES (?, ?, ?)`,
		chatID, role, content)
	return err
}

// GetHistory returns the last limit messages in chronological order,
// ready to prepend to an LLM call.
func (s *Store) GetHistory(chatID string, limit int) ([]llms.MessageContent, error) {
	rows, err := s.DB.Query(
		`SELECT role, content FROM messages WHERE chat_id = ? ORDER BY timestamp DESC LIMIT ?`,
		chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []llms.MessageContent
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}

		var msgRole llms.ChatMessageType
		switch role {
		case "ai":
			msgRole = llms.ChatMessageTypeAI
		case "system":
			msgRole = llms.ChatMessageTypeSystem
		default:
			msgRole = llms.ChatMessageTypeHuman
		}
		history = append(history, llms.MessageContent{
			Role:  msgRole,
			Parts: []llms.ContentPart{llms.TextPart(content)},
		})
	}

	// Reverse into chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, rows.Err()
}

// RecentUsers lists chat IDs active since the cutoff, for proactive
// sweeps.
func (s *Store) RecentUsers(since time.Time) ([]string, error) {
	rows, err := s.DB.Query(
		`SELECT DISTINCT chat_id FROM messages WHERE timestamp >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ApprovalStore adapts the database to approval.Store. Rows keep the
// full request as a JSON payload next to the indexed columns.
type ApprovalStore struct {
	db  *sql.DB
	log *zap.Logger
}

func (s *Store) Approvals() *ApprovalStore {
	return &ApprovalStore{db: s.DB, log: s.Log}
}

func (s *ApprovalStore) Get(id uuid.UUID) (*approval.PendingApproval, bool) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM approvals WHERE id = ?`, id.String()).Scan(&payload)
	if err != nil {
		return nil, false
	}
	var a approval.PendingApproval
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		s.log.Error("corrupt approval payload", zap.String("id", id.String()), zap.Error(err))
		return nil, false
	}
	return &a, true
}

func (s *ApprovalStore) Put(a *approval.PendingApproval) {
	payload, err := json.Marshal(a)
	if err != nil {
		s.log.Error("failed to encode approval", zap.Error(err))
		return
	}
	_, err = s.db.Exec(
		`INSERT INTO approvals (id, user_id, status, created_at, payload) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload`,
		a.ID.String(), a.UserID, string(a.Status), a.CreatedAt, string(payload))
	if err != nil {
		s.log.Error("failed to persist approval", zap.Error(err))
	}
}

func (s *ApprovalStore) ListByUser(userID string) []*approval.PendingApproval {
	return s.scan(`SELECT payload FROM approvals WHERE user_id = ?`, userID)
}

func (s *ApprovalStore) All() []*approval.PendingApproval {
	return s.scan(`SELECT payload FROM approvals`)
}

func (s *ApprovalStore) Delete(id uuid.UUID) {
	if _, err := s.db.Exec(`DELETE FROM approvals WHERE id = ?`, id.String()); err != nil {
		s.log.Error("failed to delete approval", zap.Error(err))
	}
}

func (s *ApprovalStore) scan(query string, args ...any) []*approval.PendingApproval {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.log.Error("approval query failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []*approval.PendingApproval
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var a approval.PendingApproval
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			continue
		}
		out = append(out, &a)
	}
	return out
}

// AuditLog adapts the database to audit.Recorder.
type AuditLog struct {
	db  *sql.DB
	log *zap.Logger
}

func (s *Store) AuditLog() *AuditLog {
	return &AuditLog{db: s.DB, log: s.Log}
}

func (l *AuditLog) Append(e audit.Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		l.log.Error("failed to encode audit entry", zap.Error(err))
		return
	}
	_, err = l.db.Exec(
		`INSERT INTO audit_log (id, user_id, at, payload) VALUES (?, ?, ?, ?)`,
		e.ID.String(), e.UserID, e.At, string(payload))
	if err != nil {
		l.log.Error("failed to persist audit entry", zap.Error(err))
	}
}

func (l *AuditLog) ListByUser(userID string, limit int) []audit.Entry {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.Query(
		`SELECT payload FROM audit_log WHERE user_id = ? ORDER BY at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		l.log.Error("audit query failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var e audit.Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}
