package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// NodeFailure is one failed node of a write.
type NodeFailure struct {
	Addr    uint16 `json:"addr"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}

// Record is one completed configuration write.
type Record struct {
	ID            int64         `json:"id"`
	MsgID         string        `json:"msgId"`
	DeviceAddr    uint16        `json:"deviceAddr"`
	Broadcast     bool          `json:"broadcast"`
	WriteSuccess  bool          `json:"writeSuccess"`
	RestartNeeded bool          `json:"restartNeeded"`
	Status        int           `json:"status"`
	StatusStr     string        `json:"statusStr"`
	Transactions  int           `json:"transactions"`
	NotResponded  []uint16      `json:"notResponded,omitempty"`
	NotMatched    []uint16      `json:"notMatched,omitempty"`
	Failures      []NodeFailure `json:"failures,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// Duration returns how long the write took.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// HistoryStore provides SQLite persistence for write history.
type HistoryStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewHistoryStore opens the history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *HistoryStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS writes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		msg_id TEXT NOT NULL,
		device_addr INTEGER NOT NULL,
		broadcast INTEGER NOT NULL DEFAULT 0,
		write_success INTEGER NOT NULL DEFAULT 0,
		restart_needed INTEGER NOT NULL DEFAULT 0,
		status INTEGER NOT NULL,
		status_str TEXT,
		transactions INTEGER DEFAULT 0,
		not_responded TEXT,
		not_matched TEXT,
		failures TEXT,
		started_at DATETIME,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_writes_started_at ON writes(started_at);
	CREATE INDEX IF NOT EXISTS idx_writes_device_addr ON writes(device_addr);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Add stores r and sets r.ID.
func (s *HistoryStore) Add(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notResponded, err := json.Marshal(r.NotResponded)
	if err != nil {
		return err
	}
	notMatched, err := json.Marshal(r.NotMatched)
	if err != nil {
		return err
	}
	failures, err := json.Marshal(r.Failures)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		INSERT INTO writes (msg_id, device_addr, broadcast, write_success, restart_needed,
		                    status, status_str, transactions, not_responded, not_matched,
		                    failures, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.MsgID, r.DeviceAddr, r.Broadcast, r.WriteSuccess, r.RestartNeeded,
		r.Status, r.StatusStr, r.Transactions, string(notResponded), string(notMatched),
		string(failures), r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// List returns records ordered by most recent first.
func (s *HistoryStore) List(limit, offset int) ([]Record, error) {
	return s.query(`WHERE 1 = 1`, nil, limit, offset)
}

// ListDevice returns the records of one device address, most recent first.
func (s *HistoryStore) ListDevice(addr uint16, limit int) ([]Record, error) {
	return s.query(`WHERE device_addr = ?`, []any{addr}, limit, 0)
}

func (s *HistoryStore) query(where string, args []any, limit, offset int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, offset)

	rows, err := s.db.Query(`
		SELECT id, msg_id, device_addr, broadcast, write_success, restart_needed,
		       status, status_str, transactions, not_responded, not_matched,
		       failures, started_at, finished_at
		FROM writes `+where+`
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var statusStr, notResponded, notMatched, failures sql.NullString
		var startedAt, finishedAt sql.NullTime

		if err := rows.Scan(
			&r.ID, &r.MsgID, &r.DeviceAddr, &r.Broadcast, &r.WriteSuccess, &r.RestartNeeded,
			&r.Status, &statusStr, &r.Transactions, &notResponded, &notMatched,
			&failures, &startedAt, &finishedAt,
		); err != nil {
			return nil, err
		}

		r.StatusStr = statusStr.String
		if err := unmarshalColumn(notResponded, &r.NotResponded); err != nil {
			return nil, err
		}
		if err := unmarshalColumn(notMatched, &r.NotMatched); err != nil {
			return nil, err
		}
		if err := unmarshalColumn(failures, &r.Failures); err != nil {
			return nil, err
		}
		if startedAt.Valid {
			r.StartedAt = startedAt.Time
		}
		if finishedAt.Valid {
			r.FinishedAt = finishedAt.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func unmarshalColumn(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}

// Prune deletes records that finished before cutoff and returns how many.
func (s *HistoryStore) Prune(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM writes WHERE finished_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
