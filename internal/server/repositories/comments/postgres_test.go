package comments

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/dmitrijs2005/taskforge/internal/server/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "task_id", "author_id", "author_role", "content", "edited", "created_at", "updated_at"}

func TestCreate_CapturesRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	role := roles.Developer
	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+comments`).
		WithArgs(int64(1), int64(2), roles.Developer, "hi").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), int64(1), int64(2), int64(roles.Developer), "hi", false, now, now))

	c, err := repo.Create(context.Background(), &models.Comment{TaskID: 1, AuthorID: 2, AuthorRole: &role, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.ID)
	require.NotNil(t, c.AuthorRole)
	assert.Equal(t, roles.Developer, *c.AuthorRole)
}

func TestUpdateContent_MarksEdited(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^UPDATE\s+comments\s+SET\s+content\s*=\s*\$2,\s*edited\s*=\s*true`).
		WithArgs(int64(5), "edited").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(5), int64(1), int64(2), nil, "edited", true, now, now))

	c, err := repo.UpdateContent(context.Background(), 5, "edited")
	require.NoError(t, err)
	assert.True(t, c.Edited)
	assert.Nil(t, c.AuthorRole)
}

func TestUpdateContent_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+comments`).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpdateContent(context.Background(), 5, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByTask(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)FROM\s+comments\s+WHERE\s+task_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), int64(1), int64(2), nil, "a", false, now, now).
			AddRow(int64(2), int64(1), int64(3), int64(1), "b", false, now, now))

	got, err := repo.ListByTask(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].Content)
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+comments`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 1), common.ErrorNotFound)
}
