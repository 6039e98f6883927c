package projects

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/taskforge/internal/common"
	"github.com/dmitrijs2005/taskforge/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+projects`).
		WithArgs(int64(1), "Apollo", "", models.ProjectActive, "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))

	p, err := repo.Create(context.Background(), &models.Project{CreatorID: 1, Name: "Apollo", Status: models.ProjectActive})
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+projects`).WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), &models.Project{CreatorID: 1, Name: "Apollo", Status: models.ProjectActive})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*creator_id.*FROM\s+projects\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListForUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	cols := []string{"id", "creator_id", "name", "description", "status", "banner", "deadline", "created_at", "updated_at", "progress"}
	mock.ExpectQuery(`(?s)^SELECT\s+p\.id.*FROM\s+projects\s+p`).
		WithArgs(int64(3), models.TaskDone).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), int64(3), "B", "", models.ProjectActive, "", now, now, now, 0.5).
			AddRow(int64(1), int64(9), "A", "", models.ProjectPaused, "", nil, now, now, 0.0))

	got, err := repo.ListForUser(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.5, got[0].Progress)
	require.NotNil(t, got[0].Deadline)
	assert.Nil(t, got[1].Deadline)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name        string
		done, total int64
		want        float64
	}{
		{"no tasks", 0, 0, 0},
		{"half", 2, 4, 0.5},
		{"all", 3, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(`(?s)^SELECT\s+COUNT\(\*\)\s+FILTER`).
				WithArgs(int64(1), models.TaskDone).
				WillReturnRows(sqlmock.NewRows([]string{"done", "total"}).AddRow(tt.done, tt.total))

			got, err := repo.Progress(context.Background(), 1)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUpdate_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+projects\s+SET\s+name`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Project{ID: 4, Name: "x", Status: models.ProjectActive})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+projects`).WillReturnError(errors.New("db down"))

	err := repo.Delete(context.Background(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}
