package database

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unisport-bot/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return &DB{mockDB}, mock
}

func participantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"chat_id", "given_name", "last_name", "gender", "street", "city", "phone", "email",
		"status", "matriculation_number", "business_phone", "auto_signup", "created_at", "updated_at",
	})
}

func TestGetOrCreateParticipant(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO participants")).
		WithArgs(int64(7)).
		WillReturnRows(participantRows().AddRow(
			int64(7), "", "", "", "", "", "", "", "", "", "", false, now, now,
		))

	p, err := db.GetOrCreateParticipant(7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ChatID)
	assert.False(t, p.AutoSignup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUninformedParticipantsAntiJoin(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`WHERE NOT EXISTS`).
		WithArgs(int64(42)).
		WillReturnRows(participantRows().
			AddRow(int64(1), "Jörg", "Groß", models.GenderMale, "Musterweg 1", "Köln",
				"0221123456", "joerg@example.test", models.StatusStudentUniKoeln,
				"1234567", "", false, now, now).
			AddRow(int64(2), "Erika", "Musterfrau", models.GenderFemale, "Beispielallee 2", "Köln",
				"0221654321", "erika@example.test", models.StatusEmployeeUniKlinik,
				"", "0221-478-0", true, now, now))

	participants, err := db.UninformedParticipants(42)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, int64(1), participants[0].ChatID)
	assert.Equal(t, "Jörg", participants[0].GivenName)
	assert.True(t, participants[1].AutoSignup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSignupStatusUpserts(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO signups")).
		WithArgs(int64(1), int64(42), models.SignupNotified).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.SetSignupStatus(1, 42, models.SignupNotified))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSignupMissingRowIsNil(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM signups")).
		WithArgs(int64(1), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"participant_id", "course_id", "status", "created_at", "updated_at"}))

	signup, err := db.GetSignup(1, 42)
	require.NoError(t, err)
	assert.Nil(t, signup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseBetween(t *testing.T) {
	db, mock := newMockDB(t)

	from := time.Date(2025, 11, 3, 23, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	start := from.Add(19 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url", "start_time", "end_time", "level", "location", "trainer", "created_at"}).
			AddRow(int64(42), "https://example.test", start, start.Add(90*time.Minute), "Fußball", "Halle 2", "M. Musterfrau", from))

	course, err := db.CourseBetween(from, to)
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, int64(42), course.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseBetweenEmptyDayIsNil(t *testing.T) {
	db, mock := newMockDB(t)

	from := time.Date(2025, 11, 3, 23, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses")).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "url", "start_time", "end_time", "level", "location", "trainer", "created_at"}))

	course, err := db.CourseBetween(from, to)
	require.NoError(t, err)
	assert.Nil(t, course)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeParticipantIsTransactional(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM signups")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM participants")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.PurgeParticipant(7))
	require.NoError(t, mock.ExpectationsWereMet())
}
