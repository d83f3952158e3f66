package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openSessions(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+strings.ReplaceAll(t.Name(), "/", "_")+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func sessionCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	return n
}

func insertSession(ctx context.Context, tx DBTX, token string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO sessions(token, user_id) VALUES (?, 'u-1')`, token)
	return err
}

func TestWithTx(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		fn       func(ctx context.Context, tx DBTX) error
		wantErr  error
		wantRows int
	}{
		{
			name:     "commits on success",
			fn:       func(ctx context.Context, tx DBTX) error { return insertSession(ctx, tx, "t-1") },
			wantRows: 1,
		},
		{
			name: "rolls back on error",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertSession(ctx, tx, "t-1"); err != nil {
					return err
				}
				return boom
			},
			wantErr:  boom,
			wantRows: 0,
		},
		{
			name: "rolls back the whole group when a later write fails",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertSession(ctx, tx, "dup"); err != nil {
					return err
				}
				return insertSession(ctx, tx, "dup")
			},
			wantRows: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openSessions(t)

			err := WithTx(context.Background(), db, nil, tt.fn)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantRows == 0:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantRows, sessionCount(t, db))
		})
	}
}

func TestWithTx_PanicRollsBackAndPropagates(t *testing.T) {
	db := openSessions(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertSession(ctx, tx, "t-1"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, sessionCount(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openSessions(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestInTx(t *testing.T) {
	t.Run("begins when given a pool", func(t *testing.T) {
		db := openSessions(t)

		err := InTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
			assert.IsType(t, &sql.Tx{}, tx)
			return insertSession(ctx, tx, "t-1")
		})
		require.NoError(t, err)
		assert.Equal(t, 1, sessionCount(t, db))
	})

	t.Run("joins an open transaction", func(t *testing.T) {
		db := openSessions(t)

		err := WithTx(context.Background(), db, nil, func(ctx context.Context, outer DBTX) error {
			return InTx(ctx, outer, func(ctx context.Context, inner DBTX) error {
				assert.Same(t, outer, inner)
				return insertSession(ctx, inner, "t-1")
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, sessionCount(t, db))
	})
}
