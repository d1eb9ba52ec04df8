package synclog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/retrosync/retrosync/internal/db"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sync_events (
    id TEXT PRIMARY KEY,
    seq INTEGER NOT NULL,
    action TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_size INTEGER,
    status TEXT NOT NULL,
    error_msg TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL -- RFC3339Nano
);

CREATE INDEX IF NOT EXISTS idx_sync_events_seq ON sync_events(seq);
CREATE INDEX IF NOT EXISTS idx_sync_events_path ON sync_events(file_path);
`

var ErrJournalClosed = errors.New("synclog: journal not open")

// dbEvent is the row shape; time is stored as TEXT.
type dbEvent struct {
	ID        string        `db:"id"`
	Seq       int64         `db:"seq"`
	Action    string        `db:"action"`
	FilePath  string        `db:"file_path"`
	FileSize  sql.NullInt64 `db:"file_size"`
	Status    string        `db:"status"`
	ErrorMsg  string        `db:"error_msg"`
	Note      string        `db:"note"`
	CreatedAt string        `db:"created_at"`
}

// JournalEntry is an event read back from the journal.
type JournalEntry struct {
	ID string
	Event
}

// Journal is the local append-only record of sync events.
type Journal struct {
	db     *sqlx.DB
	dbPath string
	now    func() time.Time
}

// NewJournal prepares a journal at dbPath; db.MemoryPath keeps it in memory.
func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath, now: time.Now}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	conn, err := db.Open(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	if _, err := conn.Exec(journalSchema); err != nil {
		conn.Close()
		return fmt.Errorf("init journal schema: %w", err)
	}

	j.db = conn
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrJournalClosed
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		slog.Error("journal close", "error", err)
	}
	return err
}

// Append stores ev. A zero At is stamped with the current time.
func (j *Journal) Append(ctx context.Context, ev Event) error {
	if j.db == nil {
		return ErrJournalClosed
	}

	at := ev.At
	if at.IsZero() {
		at = j.now()
	}

	row := dbEvent{
		ID:        uuid.NewString(),
		Action:    string(ev.Action),
		FilePath:  ev.FilePath,
		Status:    string(ev.Status),
		ErrorMsg:  ev.Error,
		Note:      ev.Note,
		CreatedAt: at.UTC().Format(time.RFC3339Nano),
	}
	if ev.Size != nil {
		row.FileSize = sql.NullInt64{Int64: *ev.Size, Valid: true}
	}

	query := `INSERT INTO sync_events (id, seq, action, file_path, file_size, status, error_msg, note, created_at)
	          VALUES (:id, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sync_events), :action, :file_path, :file_size, :status, :error_msg, :note, :created_at)`
	if _, err := j.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("append %s event for %s: %w", ev.Action, ev.FilePath, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if j.db == nil {
		return nil, ErrJournalClosed
	}
	if limit <= 0 {
		return nil, nil
	}

	var rows []dbEvent
	err := j.db.SelectContext(ctx, &rows,
		"SELECT id, seq, action, file_path, file_size, status, error_msg, note, created_at FROM sync_events ORDER BY seq DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}

	entries := make([]JournalEntry, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse stored timestamp for event %s: %w", r.ID, err)
		}
		e := JournalEntry{
			ID: r.ID,
			Event: Event{
				Action:   Action(r.Action),
				FilePath: r.FilePath,
				Status:   Status(r.Status),
				Error:    r.ErrorMsg,
				Note:     r.Note,
				At:       at,
			},
		}
		if r.FileSize.Valid {
			e.Size = Size(r.FileSize.Int64)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Counts returns the number of events per action and status, e.g. counts["upload"]["failed"].
func (j *Journal) Counts(ctx context.Context) (map[Action]map[Status]int, error) {
	if j.db == nil {
		return nil, ErrJournalClosed
	}

	var rows []struct {
		Action string `db:"action"`
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	err := j.db.SelectContext(ctx, &rows, "SELECT action, status, COUNT(*) AS n FROM sync_events GROUP BY action, status")
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	counts := make(map[Action]map[Status]int)
	for _, r := range rows {
		a := Action(r.Action)
		if counts[a] == nil {
			counts[a] = make(map[Status]int)
		}
		counts[a][Status(r.Status)] = r.N
	}
	return counts, nil
}

var _ Appender = (*Journal)(nil)
