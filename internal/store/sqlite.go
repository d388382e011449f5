package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organisations (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS user_organisations (
	user_id         TEXT NOT NULL REFERENCES users(id),
	organisation_id TEXT NOT NULL REFERENCES organisations(id),
	PRIMARY KEY (user_id, organisation_id)
);

CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	url        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS termsheets (
	id                      TEXT PRIMARY KEY,
	org_id                  TEXT NOT NULL,
	title                   TEXT NOT NULL DEFAULT '',
	status                  TEXT NOT NULL DEFAULT 'PENDING',
	ourtermsheet_file_id    TEXT REFERENCES files(id),
	mapsheet_file_id        TEXT REFERENCES files(id),
	structuredsheet_file_id TEXT REFERENCES files(id),
	validatedsheet_file_id  TEXT REFERENCES files(id),
	coloursheet_file_id     TEXT REFERENCES files(id),
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_termsheets_org_id ON termsheets(org_id);
CREATE INDEX IF NOT EXISTS idx_termsheets_status ON termsheets(status);
CREATE INDEX IF NOT EXISTS idx_user_organisations_org ON user_organisations(organisation_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTermsheet(ctx context.Context, orgID, title string) (*model.Termsheet, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO termsheets (id, org_id, title, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, orgID, title, string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert termsheet")
	}
	return &model.Termsheet{
		ID:        id,
		OrgID:     orgID,
		Title:     title,
		Status:    model.StatusPending,
		Files:     map[model.FileRole]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetTermsheet(ctx context.Context, id string) (*model.Termsheet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, title, status, `+fileColumns+`, created_at, updated_at FROM termsheets WHERE id = ?`,
		id,
	)
	ts, err := scanTermsheet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get termsheet %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get termsheet %s", id)
	}
	return ts, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status model.TermsheetStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE termsheets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	return checkRowsAffected(res, "termsheet", id)
}

func (s *SQLiteStore) GetFile(ctx context.Context, termsheetID string, role model.FileRole) (*model.FileRef, error) {
	col, err := roleColumn(role)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT f.id, f.url, f.type, f.created_at FROM files f JOIN termsheets t ON f.id = t.`+col+` WHERE t.id = ?`,
		termsheetID,
	)

	var (
		ref model.FileRef
		ft  string
	)
	err = row.Scan(&ref.ID, &ref.URL, &ft, &ref.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: %s of termsheet %s", role, termsheetID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s of termsheet %s", role, termsheetID)
	}
	ref.Type = model.FileType(ft)
	return &ref, nil
}

func (s *SQLiteStore) AttachFile(ctx context.Context, termsheetID string, role model.FileRole, url string, ft model.FileType) (string, error) {
	col, err := roleColumn(role)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin attach file")
	}
	defer tx.Rollback() //nolint:errcheck

	id := uuid.New().String()
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (id, type, url, created_at) VALUES (?, ?, ?, ?)`,
		id, string(ft), url, now,
	); err != nil {
		return "", eris.Wrap(err, "sqlite: insert file")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE termsheets SET `+col+` = ?, updated_at = ? WHERE id = ?`,
		id, now, termsheetID,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: set %s on termsheet %s", role, termsheetID)
	}
	if err := checkRowsAffected(res, "termsheet", termsheetID); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit attach file")
	}
	return id, nil
}

func (s *SQLiteStore) ListRecipients(ctx context.Context, orgID string) ([]model.Recipient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.name, u.email FROM users u JOIN user_organisations uo ON uo.user_id = u.id WHERE uo.organisation_id = ? ORDER BY u.email`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list recipients for %s", orgID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		if err := rows.Scan(&r.Name, &r.Email); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recipient")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate recipients")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTermsheet(row scannable) (*model.Termsheet, error) {
	var (
		ts     model.Termsheet
		status string
		ids    [5]sql.NullString
	)
	err := row.Scan(&ts.ID, &ts.OrgID, &ts.Title, &status,
		&ids[0], &ids[1], &ids[2], &ids[3], &ids[4],
		&ts.CreatedAt, &ts.UpdatedAt)
	if err != nil {
		return nil, err
	}
	var ptrs [5]*string
	for i := range ids {
		if ids[i].Valid {
			ptrs[i] = &ids[i].String
		}
	}
	ts.Status = model.TermsheetStatus(status)
	ts.Files = filesFromColumns(ptrs)
	return &ts, nil
}
