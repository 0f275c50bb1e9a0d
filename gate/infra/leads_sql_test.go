package infra

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reading-gate/gate/domain"
)

func sampleLead() domain.Lead {
	return domain.Lead{
		ID:        "01J00000000000000000000000",
		Email:     "a@b.com",
		Consent:   true,
		PageURL:   "https://blog.example/post",
		PageTitle: "Post",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSQLLeadStore_PostgresPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lead := sampleLead()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gate_leads (id, email, consent, page_url, page_title, created_at) VALUES ($1, $2, $3, $4, $5, $6)")).
		WithArgs(lead.ID, lead.Email, true, lead.PageURL, lead.PageTitle, lead.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewSQLLeadStore(db, DriverPostgres)
	require.NoError(t, s.Insert(context.Background(), lead))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLeadStore_InsertErrorIsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gate_leads")).WillReturnError(boom)

	s := NewSQLLeadStore(db, DriverSQLite)
	err = s.Insert(context.Background(), sampleLead())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLeadStore_EnsureSchemaPicksDialect(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("TIMESTAMPTZ").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewSQLLeadStore(db, DriverPostgres).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLeadStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenLeadDB(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLLeadStore(db, DriverSQLite)
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.EnsureSchema(ctx))
	require.NoError(t, s.Insert(ctx, sampleLead()))

	var (
		email   string
		consent bool
	)
	require.NoError(t, db.QueryRowContext(ctx, "SELECT email, consent FROM gate_leads WHERE id = ?", sampleLead().ID).Scan(&email, &consent))
	assert.Equal(t, "a@b.com", email)
	assert.True(t, consent)

	// id duplicado viola a chave primária
	assert.Error(t, s.Insert(ctx, sampleLead()))
}

func TestOpenLeadDB_RejectsUnknownDriver(t *testing.T) {
	_, err := OpenLeadDB(context.Background(), "mysql", "")
	assert.Error(t, err)
}
