// Package store persists crosscheck run history so past verdicts can be
// reviewed and audited.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gridline/crosscheck-cli/internal/model"
)

// Run is one persisted crosscheck outcome.
type Run struct {
	ID              string                  `json:"id"`
	Document        string                  `json:"document"`
	MatchedRow      *int                    `json:"matched_row"`
	MatchPercentage float64                 `json:"match_percentage"`
	Verdict         string                  `json:"verdict"`
	Result          *model.CrosscheckResult `json:"result,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

// SQLiteStore keeps run history in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	document   TEXT NOT NULL,
	matched_row INTEGER,
	match_pct  REAL NOT NULL DEFAULT 0,
	verdict    TEXT NOT NULL,
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save assigns the run an ID and timestamp and inserts it.
func (s *SQLiteStore) Save(ctx context.Context, run *Run) error {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	var resultJSON sql.NullString
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal result")
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, document, matched_row, match_pct, verdict, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Document, run.MatchedRow, run.MatchPercentage, run.Verdict, resultJSON, run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

// Get returns one run by ID, full result included.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document, matched_row, match_pct, verdict, result, created_at
		 FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// Recent returns the newest runs, most recent first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, matched_row, match_pct, verdict, result, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var matchedRow sql.NullInt64
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Document, &matchedRow, &r.MatchPercentage, &r.Verdict, &resultJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if matchedRow.Valid {
		v := int(matchedRow.Int64)
		r.MatchedRow = &v
	}
	if resultJSON.Valid {
		r.Result = &model.CrosscheckResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
