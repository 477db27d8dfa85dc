package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadfoundry/leadfoundry/pkg/audit"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Config{RetentionDays: 30}), mock
}

func TestRecord_Success(t *testing.T) {
	store, mock := newMockStore(t)

	event := audit.NewEvent(audit.EventLoginFailure).
		WithIP("198.51.100.7").
		WithEmail("owner@example.com").
		WithReason("invalid credentials")

	mock.ExpectExec("INSERT INTO security_events").WithArgs(
		event.ID, event.Timestamp, "login_failure", "198.51.100.7",
		"owner@example.com", "", "invalid credentials", "", 0, 0,
	).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Record(context.Background(), *event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecord_DBError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO security_events").
		WillReturnError(errors.New("connection refused"))

	err := store.Record(context.Background(), *audit.NewEvent(audit.EventLoginSuccess))
	assert.ErrorContains(t, err, "inserting security event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_WithFilter(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT id, timestamp, type").
		WithArgs("rate_limit_exceeded", "198.51.100.7").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("ev-1", now, "rate_limit_exceeded", "198.51.100.7", "", "", "", "login", 42, 0))

	events, err := store.Query(context.Background(), audit.QueryFilter{
		Type: audit.EventRateLimitExceeded,
		IP:   "198.51.100.7",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventRateLimitExceeded, events[0].Type)
	assert.Equal(t, 42, events[0].RetryAfterSeconds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_EmptyResult(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, timestamp, type").
		WillReturnRows(sqlmock.NewRows(eventColumns))

	events, err := store.Query(context.Background(), audit.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurge_ReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM security_events").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := store.Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClose_WithoutStart(t *testing.T) {
	store, _ := newMockStore(t)
	assert.NoError(t, store.Close())
}
