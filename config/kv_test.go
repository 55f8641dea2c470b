package config

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mockManager wires a sqlmock-backed gorm connection into a Manager so the
// KV error paths can be forced.
func mockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	m := NewManager("unused.yaml", nil)
	m.global = Manifest{}
	m.AttachDB(gdb)
	return m, mock
}

func TestKVGet_QueryErrorSkipsSource(t *testing.T) {
	m, mock := mockManager(t)
	mock.ExpectQuery(`SELECT \* FROM "kv_store"`).WillReturnError(assert.AnError)

	// A KV failure is not fatal: resolution falls through to the default.
	opt := &Option{Name: []string{"feature", "flag"}, Default: "fallback", Type: TypeString}
	v, err := m.Resolve(context.Background(), opt, nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKVGet_CorruptValueSkipsSource(t *testing.T) {
	m, mock := mockManager(t)
	rows := sqlmock.NewRows([]string{"key", "value"}).AddRow("feature/flag", "{not json")
	mock.ExpectQuery(`SELECT \* FROM "kv_store"`).WillReturnRows(rows)

	opt := &Option{Name: []string{"feature", "flag"}, Default: "fallback", Type: TypeString}
	v, err := m.Resolve(context.Background(), opt, nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestKVGet_DecodedValueWins(t *testing.T) {
	m, mock := mockManager(t)
	rows := sqlmock.NewRows([]string{"key", "value"}).AddRow("feature/flag", `"from-kv"`)
	mock.ExpectQuery(`SELECT \* FROM "kv_store"`).WillReturnRows(rows)

	opt := &Option{Name: []string{"feature", "flag"}, Default: "fallback", Type: TypeString}
	v, err := m.Resolve(context.Background(), opt, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-kv", v)
}

func TestSetKV_RequiresDB(t *testing.T) {
	m := NewManager("unused.yaml", nil)
	err := m.SetKV(context.Background(), "k", "v")
	require.Error(t, err)
}
