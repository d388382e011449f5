package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/termsheet-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedMember(t *testing.T, st *SQLiteStore, orgID, userID, name, email string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.db.ExecContext(ctx, `INSERT OR IGNORE INTO organisations (id, name) VALUES (?, ?)`, orgID, orgID)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `INSERT INTO users (id, name, email) VALUES (?, ?, ?)`, userID, name, email)
	require.NoError(t, err)
	_, err = st.db.ExecContext(ctx, `INSERT INTO user_organisations (user_id, organisation_id) VALUES (?, ?)`, userID, orgID)
	require.NoError(t, err)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_CreateAndGetTermsheet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateTermsheet(ctx, "org-1", "Series A")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusPending, created.Status)

	got, err := st.GetTermsheet(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, "Series A", got.Title)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Empty(t, got.Files)
}

func TestSQLite_GetTermsheet_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetTermsheet(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_UpdateStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ts, err := st.CreateTermsheet(ctx, "org-1", "deal")
	require.NoError(t, err)

	require.NoError(t, st.UpdateStatus(ctx, ts.ID, model.StatusToBeAccepted))
	got, err := st.GetTermsheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusToBeAccepted, got.Status)

	err = st.UpdateStatus(ctx, "missing", model.StatusFailed)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_AttachAndGetFile(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ts, err := st.CreateTermsheet(ctx, "org-1", "deal")
	require.NoError(t, err)

	id, err := st.AttachFile(ctx, ts.ID, model.RoleTermsheet, "https://files.example.com/ts.pdf", model.FileTypePDF)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ref, err := st.GetFile(ctx, ts.ID, model.RoleTermsheet)
	require.NoError(t, err)
	assert.Equal(t, id, ref.ID)
	assert.Equal(t, "https://files.example.com/ts.pdf", ref.URL)
	assert.Equal(t, model.FileTypePDF, ref.Type)

	got, err := st.GetTermsheet(ctx, ts.ID)
	require.NoError(t, err)
	assert.Equal(t, map[model.FileRole]string{model.RoleTermsheet: id}, got.Files)
}

func TestSQLite_AttachFile_ReplacesSlot(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ts, err := st.CreateTermsheet(ctx, "org-1", "deal")
	require.NoError(t, err)

	_, err = st.AttachFile(ctx, ts.ID, model.RoleStructured, "file:///tmp/v1.csv", model.FileTypeCSV)
	require.NoError(t, err)
	second, err := st.AttachFile(ctx, ts.ID, model.RoleStructured, "file:///tmp/v2.csv", model.FileTypeCSV)
	require.NoError(t, err)

	ref, err := st.GetFile(ctx, ts.ID, model.RoleStructured)
	require.NoError(t, err)
	assert.Equal(t, second, ref.ID)
	assert.Equal(t, "file:///tmp/v2.csv", ref.URL)
}

func TestSQLite_AttachFile_MissingTermsheet(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.AttachFile(context.Background(), "missing", model.RoleMapsheet, "x", model.FileTypeExcel)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var n int
	require.NoError(t, st.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n))
	assert.Zero(t, n, "file row must roll back")
}

func TestSQLite_GetFile_EmptySlot(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ts, err := st.CreateTermsheet(ctx, "org-1", "deal")
	require.NoError(t, err)

	_, err = st.GetFile(ctx, ts.ID, model.RoleMapsheet)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_UnknownRole(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetFile(context.Background(), "x", model.FileRole("bogus; DROP TABLE files"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown file role")
}

func TestSQLite_ListRecipients(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedMember(t, st, "org-1", "u2", "Zed", "zed@example.com")
	seedMember(t, st, "org-1", "u1", "Ann", "ann@example.com")
	seedMember(t, st, "org-2", "u3", "Other", "other@example.com")

	got, err := st.ListRecipients(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, []model.Recipient{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Zed", Email: "zed@example.com"},
	}, got)

	none, err := st.ListRecipients(ctx, "org-empty")
	require.NoError(t, err)
	assert.Empty(t, none)
}
