package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewFromDB(db, nil), mock
}

func TestObjectStatistics(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT source, object_class, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"source", "object_class", "count"}).
			AddRow("RIPE", "route", 42).
			AddRow("ARIN", "aut-num", 7))

	sess, err := store.Conn(context.Background())
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	counts, err := sess.ObjectStatistics(context.Background())
	require.NoError(t, err)

	require.Len(t, counts, 2)
	assert.Equal(t, ObjectCount{Source: "RIPE", ObjectClass: "route", Count: 42}, counts[0])
	assert.Equal(t, ObjectCount{Source: "ARIN", ObjectClass: "aut-num", Count: 7}, counts[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSourceStatusNullableColumns(t *testing.T) {
	store, mock := newMockStore(t)

	updated := time.Date(2024, 3, 1, 11, 59, 55, 0, time.UTC)
	columns := []string{
		"source", "updated", "last_error_timestamp",
		"serial_newest_mirror", "serial_last_export",
		"serial_oldest_journal", "serial_newest_journal",
	}
	mock.ExpectQuery("FROM database_status").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("RIPE", updated, nil, int64(100), nil, nil, nil).
			AddRow("ARIN", nil, updated, nil, int64(250), int64(10), int64(275)))

	sess, err := store.Conn(context.Background())
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	statuses, err := sess.SourceStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	ripe := statuses[0]
	assert.Equal(t, "RIPE", ripe.Source)
	require.NotNil(t, ripe.Updated)
	assert.True(t, ripe.Updated.Equal(updated))
	assert.Nil(t, ripe.LastError)
	require.NotNil(t, ripe.SerialNewestMirror)
	assert.EqualValues(t, 100, *ripe.SerialNewestMirror)
	assert.Nil(t, ripe.SerialLastExport)
	assert.Nil(t, ripe.SerialOldestJournal)
	assert.Nil(t, ripe.SerialNewestJournal)

	arin := statuses[1]
	assert.Equal(t, "ARIN", arin.Source)
	assert.Nil(t, arin.Updated)
	require.NotNil(t, arin.LastError)
	require.NotNil(t, arin.SerialLastExport)
	assert.EqualValues(t, 250, *arin.SerialLastExport)
	require.NotNil(t, arin.SerialOldestJournal)
	assert.EqualValues(t, 10, *arin.SerialOldestJournal)
	require.NotNil(t, arin.SerialNewestJournal)
	assert.EqualValues(t, 275, *arin.SerialNewestJournal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrorPropagates(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM rpsl_objects").
		WillReturnError(assert.AnError)

	sess, err := store.Conn(context.Background())
	require.NoError(t, err)
	defer func() { _ = sess.Close() }()

	_, err = sess.ObjectStatistics(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestOpenRejectsUnknownType(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown database type "oracle"`)
}

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults",
			cfg:  Config{Database: "irrd"},
			want: "host=localhost port=5432 dbname=irrd sslmode=disable",
		},
		{
			name: "full config",
			cfg: Config{
				Host: "db.example.net", Port: 5433, Database: "irrd",
				Username: "irrd", Password: "secret", SSLMode: "require",
			},
			want: "host=db.example.net port=5433 dbname=irrd sslmode=require user=irrd password=secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildPostgresDSN(tt.cfg))
		})
	}
}
