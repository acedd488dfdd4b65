package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seventic/ops-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*ScheduleRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewScheduleRepository(sqlxDB), mock, func() { _ = db.Close() }
}

func TestScheduleRepositoryUpsert(t *testing.T) {
	repo, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, day) DO UPDATE SET location = EXCLUDED.location, note = EXCLUDED.note, updated_at = EXCLUDED.updated_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.ScheduleEntry{
		UserID:   "u-1",
		Day:      time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		Location: models.LocationRemote,
	}
	err := repo.Upsert(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryListWeek(t *testing.T) {
	repo, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	from := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 6)

	rows := sqlmock.NewRows([]string{"id", "user_id", "day", "location", "note", "created_at", "updated_at"}).
		AddRow("s-1", "u-1", from, "office", "", from, from).
		AddRow("s-2", "u-1", from.AddDate(0, 0, 1), "remote", "matin uniquement", from, from)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_entries WHERE 1=1 AND user_id = $1 AND day >= $2 AND day <= $3 ORDER BY day ASC")).
		WithArgs("u-1", from, to).
		WillReturnRows(rows)

	entries, err := repo.List(context.Background(), models.ScheduleFilter{UserID: "u-1", From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LocationOffice, entries[0].Location)
	assert.Equal(t, models.LocationRemote, entries[1].Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE id = $1")).
		WithArgs("s-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "s-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
