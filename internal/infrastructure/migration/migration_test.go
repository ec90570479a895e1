package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	stmts  []string
	failOn string
}

func (d *recordingDB) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	d.stmts = append(d.stmts, sql)
	if d.failOn != "" && strings.Contains(sql, d.failOn) {
		return nil, errors.New("boom")
	}
	return pgconn.CommandTag("OK"), nil
}

func TestRunMigrationsOrder(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, RunMigrations(context.Background(), db, zerolog.Nop()))

	require.Len(t, db.stmts, len(Migrations(zerolog.Nop())))
	assert.Contains(t, db.stmts[0], "CREATE TABLE IF NOT EXISTS profiles")
	assert.Contains(t, db.stmts[1], "billing_version")
}

func TestAdditiveMigrationFailureIsTolerated(t *testing.T) {
	db := &recordingDB{failOn: "billing_version"}
	assert.NoError(t, RunMigrations(context.Background(), db, zerolog.Nop()))
	assert.Len(t, db.stmts, len(Migrations(zerolog.Nop())))
}

func TestRequiredMigrationFailureStops(t *testing.T) {
	db := &recordingDB{failOn: "usage_records"}
	err := RunMigrations(context.Background(), db, zerolog.Nop())
	assert.Error(t, err)
	assert.Len(t, db.stmts, 3)
}
