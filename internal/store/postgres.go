package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organisations (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name  TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS user_organisations (
	user_id         TEXT NOT NULL REFERENCES users(id),
	organisation_id TEXT NOT NULL REFERENCES organisations(id),
	PRIMARY KEY (user_id, organisation_id)
);

CREATE TABLE IF NOT EXISTS files (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type       TEXT NOT NULL,
	url        TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS termsheets (
	id                      TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	org_id                  TEXT NOT NULL,
	title                   TEXT NOT NULL DEFAULT '',
	status                  TEXT NOT NULL DEFAULT 'PENDING',
	ourtermsheet_file_id    TEXT REFERENCES files(id),
	mapsheet_file_id        TEXT REFERENCES files(id),
	structuredsheet_file_id TEXT REFERENCES files(id),
	validatedsheet_file_id  TEXT REFERENCES files(id),
	coloursheet_file_id     TEXT REFERENCES files(id),
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_termsheets_org_id ON termsheets(org_id);
CREATE INDEX IF NOT EXISTS idx_termsheets_status ON termsheets(status);
CREATE INDEX IF NOT EXISTS idx_user_organisations_org ON user_organisations(organisation_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateTermsheet(ctx context.Context, orgID, title string) (*model.Termsheet, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO termsheets (id, org_id, title, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, orgID, title, string(model.StatusPending), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert termsheet")
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

func (s *PostgresStore) GetTermsheet(ctx context.Context, id string) (*model.Termsheet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, org_id, title, status, `+fileColumns+`, created_at, updated_at FROM termsheets WHERE id = $1`,
		id,
	)

	var (
		ts     model.Termsheet
		status string
		ids    [5]*string
	)
	err := row.Scan(&ts.ID, &ts.OrgID, &ts.Title, &status,
		&ids[0], &ids[1], &ids[2], &ids[3], &ids[4],
		&ts.CreatedAt, &ts.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get termsheet %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get termsheet %s", id)
	}
	ts.Status = model.TermsheetStatus(status)
	ts.Files = filesFromColumns(ids)
	return &ts, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status model.TermsheetStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE termsheets SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: termsheet %s", id)
	}
	return nil
}

func (s *PostgresStore) GetFile(ctx context.Context, termsheetID string, role model.FileRole) (*model.FileRef, error) {
	col, err := roleColumn(role)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT f.id, f.url, f.type, f.created_at FROM files f JOIN termsheets t ON f.id = t.`+col+` WHERE t.id = $1`,
		termsheetID,
	)

	var (
		ref model.FileRef
		ft  string
	)
	err = row.Scan(&ref.ID, &ref.URL, &ft, &ref.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: %s of termsheet %s", role, termsheetID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s of termsheet %s", role, termsheetID)
	}
	ref.Type = model.FileType(ft)
	return &ref, nil
}

func (s *PostgresStore) AttachFile(ctx context.Context, termsheetID string, role model.FileRole, url string, ft model.FileType) (string, error) {
	col, err := roleColumn(role)
	if err != nil {
		return "", err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin attach file")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := uuid.New().String()
	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO files (id, type, url, created_at) VALUES ($1, $2, $3, $4)`,
		id, string(ft), url, now,
	); err != nil {
		return "", eris.Wrap(err, "postgres: insert file")
	}

	tag, err := tx.Exec(ctx,
		`UPDATE termsheets SET `+col+` = $1, updated_at = $2 WHERE id = $3`,
		id, now, termsheetID,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: set %s on termsheet %s", role, termsheetID)
	}
	if tag.RowsAffected() == 0 {
		return "", eris.Wrapf(ErrNotFound, "postgres: termsheet %s", termsheetID)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit attach file")
	}
	return id, nil
}

func (s *PostgresStore) ListRecipients(ctx context.Context, orgID string) ([]model.Recipient, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.name, u.email FROM users u JOIN user_organisations uo ON uo.user_id = u.id WHERE uo.organisation_id = $1 ORDER BY u.email`,
		orgID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list recipients for %s", orgID)
	}
	defer rows.Close()

	var out []model.Recipient
	for rows.Next() {
		var r model.Recipient
		if err := rows.Scan(&r.Name, &r.Email); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recipient")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate recipients")
}
