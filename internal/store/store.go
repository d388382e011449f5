// Package store persists termsheet records, their file slots and the
// organisation members who receive results.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/termsheet-cli/internal/config"
	"github.com/sells-group/termsheet-cli/internal/model"
)

// ErrNotFound is returned when a termsheet or file slot does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for the termsheet pipeline.
type Store interface {
	// Termsheets
	CreateTermsheet(ctx context.Context, orgID, title string) (*model.Termsheet, error)
	GetTermsheet(ctx context.Context, id string) (*model.Termsheet, error)
	UpdateStatus(ctx context.Context, id string, status model.TermsheetStatus) error

	// Files
	GetFile(ctx context.Context, termsheetID string, role model.FileRole) (*model.FileRef, error)
	AttachFile(ctx context.Context, termsheetID string, role model.FileRole, url string, ft model.FileType) (string, error)

	// Organisations
	ListRecipients(ctx context.Context, orgID string) ([]model.Recipient, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool the Postgres store uses. pgxmock pools
// satisfy it too.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// New opens the configured backend.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres", "":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	}
	return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
}

func roleColumn(role model.FileRole) (string, error) {
	if !role.Valid() {
		return "", eris.Errorf("store: unknown file role %q", role)
	}
	return role.Column(), nil
}

var allRoles = []model.FileRole{
	model.RoleTermsheet,
	model.RoleMapsheet,
	model.RoleStructured,
	model.RoleValidated,
	model.RoleColoured,
}

// fileColumns lists the file id columns in allRoles order.
const fileColumns = `ourtermsheet_file_id, mapsheet_file_id, structuredsheet_file_id, validatedsheet_file_id, coloursheet_file_id`

func filesFromColumns(ids [5]*string) map[model.FileRole]string {
	files := make(map[model.FileRole]string)
	for i, id := range ids {
		if id != nil && *id != "" {
			files[allRoles[i]] = *id
		}
	}
	return files
}
